package main

import (
	"fmt"
	"os"

	"github.com/axiomesh/polling/repo"
	"github.com/urfave/cli/v2"
)

var configCMD = &cli.Command{
	Name:  "config",
	Usage: "The config manage commands",
	Subcommands: []*cli.Command{
		{
			Name:   "generate",
			Usage:  "Generate default config",
			Action: generate,
		},
		{
			Name:   "show",
			Usage:  "Show the complete config processed by the environment variable",
			Action: show,
		},
		{
			Name:   "check",
			Usage:  "Check if the config file is valid",
			Action: check,
		},
		{
			Name:   "rewrite-with-env",
			Usage:  "Rewrite config with env",
			Action: rewriteWithEnv,
		},
	},
}

func generate(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	if repo.Exist(p) {
		fmt.Println("polling repo already exists")
		return nil
	}

	if err := os.MkdirAll(p, 0755); err != nil {
		return err
	}

	r := &repo.Repo{
		Config: repo.DefaultConfig(p),
	}
	if err := r.Flush(); err != nil {
		return err
	}

	fmt.Printf("initializing polling at %s\n", p)
	return nil
}

func show(ctx *cli.Context) error {
	r, err := loadExistingRepo(ctx)
	if err != nil || r == nil {
		return err
	}

	str, err := repo.MarshalConfig(r.Config)
	if err != nil {
		return err
	}
	fmt.Println(str)
	return nil
}

func check(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	if !repo.Exist(p) {
		fmt.Println("polling repo not exist")
		return nil
	}

	if _, err := repo.Load(p); err != nil {
		fmt.Println("config file format error, please check:", err)
		os.Exit(1)
	}

	return nil
}

func rewriteWithEnv(ctx *cli.Context) error {
	r, err := loadExistingRepo(ctx)
	if err != nil || r == nil {
		return err
	}

	return r.Flush()
}

// loadExistingRepo returns nil without error when the repo was never generated.
func loadExistingRepo(ctx *cli.Context) (*repo.Repo, error) {
	p, err := getRootPath(ctx)
	if err != nil {
		return nil, err
	}
	if !repo.Exist(p) {
		fmt.Println("polling repo not exist")
		return nil, nil
	}

	return repo.Load(p)
}

func getRootPath(ctx *cli.Context) (string, error) {
	return repo.LoadRepoRootFromEnv(ctx.String("repo"))
}
