package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/rarydzu/monodisk/monodisk"
	"github.com/rarydzu/monodisk/monodisk/config"
	"github.com/rarydzu/monodisk/shell"
	"github.com/rarydzu/monodisk/worker"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func buildConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if c.IsSet("image") {
		cfg.Path = c.String("image")
	}
	if c.IsSet("name") {
		cfg.FilesystemName = c.String("name")
	}
	if c.IsSet("block-size") {
		cfg.BlockSize = uint32(c.Uint("block-size"))
	}
	if c.IsSet("total-blocks") {
		cfg.TotalBlocks = uint32(c.Uint("total-blocks"))
	}
	if c.IsSet("max-inodes") {
		cfg.MaxInodes = uint32(c.Uint("max-inodes"))
	}
	if c.Bool("dev") {
		cfg.DebugMode = true
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	logger, err := zap.NewProduction()
	if cfg.DebugMode {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("initializing zap logger: %w", err)
	}
	return logger.Sugar(), nil
}

func formatAction(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	sugarlog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer sugarlog.Sync()
	disk, err := monodisk.NewMonodisk(cfg, sugarlog)
	if err != nil {
		return err
	}
	if disk.State() != monodisk.StateUnformatted && !c.Bool("force") {
		return fmt.Errorf("%s already exists, pass --force to overwrite", cfg.Path)
	}
	return disk.Format()
}

func infoAction(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	sugarlog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer sugarlog.Sync()
	w, err := worker.New(cfg, sugarlog)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	res, err := w.Submit(c.Context, worker.Task{Kind: worker.TaskInfo})
	if err != nil {
		w.Stop()
		return err
	}
	fmt.Print(res.Output)
	return w.Stop()
}

func shellAction(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	sugarlog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer sugarlog.Sync()
	w, err := worker.New(cfg, sugarlog)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	s := shell.New(w, os.Stdin, os.Stdout, sugarlog)
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		sugarlog.Errorf("shell: %v", err)
	}
	if err := w.Stop(); err != nil {
		return err
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "monodisk",
		Usage: "single-image block filesystem",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "path to the disk image"},
			&cli.StringFlag{Name: "name", Usage: "filesystem name for logs and stats"},
			&cli.BoolFlag{Name: "dev", Usage: "run with a development logger"},
		},
		Commands: []*cli.Command{
			{
				Name:  "format",
				Usage: "destructively initialize a fresh filesystem image",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "block-size", Usage: "block size in bytes"},
					&cli.UintFlag{Name: "total-blocks", Usage: "image capacity in blocks"},
					&cli.UintFlag{Name: "max-inodes", Usage: "inode table capacity"},
					&cli.BoolFlag{Name: "force", Usage: "overwrite an existing image"},
				},
				Action: formatAction,
			},
			{
				Name:   "info",
				Usage:  "mount, print filesystem statistics, unmount",
				Action: infoAction,
			},
			{
				Name:   "shell",
				Usage:  "mount and run the interactive command loop",
				Action: shellAction,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
