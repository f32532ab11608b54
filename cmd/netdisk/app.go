package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/docker/go-units"

	"github.com/bitrise-io/go-netdisk/config"
	"github.com/bitrise-io/go-netdisk/filesystem"
	"github.com/bitrise-io/go-netdisk/netdisk"
	"github.com/bitrise-io/go-netdisk/netdisk/network"
	"github.com/bitrise-io/go-netdisk/netdisk/network/chunkuploader"
	"github.com/bitrise-io/go-netdisk/timestamps"
)

const usage = `Usage: netdisk <command> [arguments]

Commands:
  list [dir] [pattern]        list a local directory, optionally filtered by a glob pattern
  upload <file> [remote-dir]  upload a local file to the netdisk
  quota                       show the storage quota of the account
  whoami                      show the account owning the access token
  timestamps                  show when local files were last uploaded
  help                        show this help`

var errMissingToken = fmt.Errorf("the secret '%s' is not defined", config.AccessTokenKey)

type app struct {
	config       config.Config
	logger       log.Logger
	pathModifier pathutil.PathModifier
	out          io.Writer

	client   *network.Client
	uploader netdisk.Uploader
	lister   filesystem.Lister
	store    *timestamps.Store
}

func newApp(envRepo env.Repository, logger log.Logger, pathModifier pathutil.PathModifier, out io.Writer) (*app, error) {
	cfg, err := config.Parse(envRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	logger.EnableDebugLog(cfg.Debug)
	cfg.Print(logger.Debugf)

	client := network.NewClient(cfg.ClientParams(), logger)

	uploadConfig := cfg.UploadConfig()
	uploadConfig.Progress = func(p chunkuploader.Progress) {
		logger.Printf("Sent chunk %d/%d (%s of %s)", p.ChunkIndex+1, p.ChunkCount,
			units.HumanSizeWithPrecision(float64(p.BytesSent), 3), units.HumanSizeWithPrecision(float64(p.TotalBytes), 3))
	}
	uploader, err := netdisk.NewUploader(client, uploadConfig, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		config:       cfg,
		logger:       logger,
		pathModifier: pathModifier,
		out:          out,
		client:       client,
		uploader:     uploader,
		lister:       filesystem.NewLister(logger),
		store:        timestamps.NewStore(cfg.TimestampsPath),
	}, nil
}

func (a *app) close() {
	a.client.CloseIdleConnections()
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n\n%s", usage)
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "list", "ls":
		return a.list(args)
	case "upload":
		return a.upload(ctx, args)
	case "quota":
		return a.quota(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "timestamps":
		return a.timestamps()
	case "help", "-h", "--help":
		_, err := fmt.Fprintln(a.out, usage)
		return err
	default:
		return fmt.Errorf("unknown command: %s\n\n%s", cmd, usage)
	}
}

func (a *app) list(args []string) error {
	var dir, pattern string
	if len(args) > 0 {
		dir = args[0]
	}
	if len(args) > 1 {
		pattern = args[1]
	}
	if len(args) > 2 {
		return fmt.Errorf("list takes at most 2 arguments, got %d", len(args))
	}

	if dir == "" {
		initial, err := a.lister.InitialPath()
		if err != nil {
			return err
		}
		dir = initial
	} else {
		absDir, err := a.pathModifier.AbsPath(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", dir, err)
		}
		dir = absDir
	}

	files, err := a.lister.ListDirectory(dir, filesystem.ListOptions{Pattern: pattern, DetectMimeType: true})
	if err != nil {
		return err
	}
	return a.printJSON(files)
}

func (a *app) upload(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: netdisk upload <file> [remote-dir]")
	}
	if a.config.AccessToken == "" {
		return errMissingToken
	}

	localPath, err := a.pathModifier.AbsPath(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}
	var remoteDir string
	if len(args) == 2 {
		remoteDir = args[1]
		if err := config.CheckRemoteDir(remoteDir); err != nil {
			return err
		}
	}

	startTime := time.Now()
	remoteFile, err := a.uploader.Upload(ctx, netdisk.UploadParams{
		LocalPath:   localPath,
		RemoteDir:   remoteDir,
		AccessToken: string(a.config.AccessToken),
	})
	if err != nil {
		if kind, ok := network.KindOf(err); ok {
			return fmt.Errorf("upload failed (%s): %w", kind, err)
		}
		return fmt.Errorf("upload failed: %w", err)
	}
	a.logger.Donef("Upload finished in %s", time.Since(startTime).Round(time.Millisecond))

	if err := a.store.Record(localPath, time.Now()); err != nil {
		// The file is on the netdisk already, a lost timestamp is not worth failing for.
		a.logger.Warnf("Failed to record upload time: %s", err)
	}

	return a.printJSON(remoteFile)
}

func (a *app) quota(ctx context.Context) error {
	if a.config.AccessToken == "" {
		return errMissingToken
	}

	quota, err := a.client.Quota(ctx, string(a.config.AccessToken), network.QuotaOptions{CheckExpire: true, CheckFree: true})
	if err != nil {
		return fmt.Errorf("failed to get quota: %w", err)
	}
	a.logger.Infof("Used %s of %s", units.HumanSizeWithPrecision(float64(quota.Used), 3), units.HumanSizeWithPrecision(float64(quota.Total), 3))

	return a.printJSON(quota)
}

func (a *app) whoami(ctx context.Context) error {
	if a.config.AccessToken == "" {
		return errMissingToken
	}

	info, err := a.client.UserInfo(ctx, string(a.config.AccessToken))
	if err != nil {
		return fmt.Errorf("failed to get user info: %w", err)
	}
	return a.printJSON(info)
}

func (a *app) timestamps() error {
	all, err := a.store.All()
	if err != nil {
		return err
	}
	return a.printJSON(all)
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to print result: %w", err)
	}
	return nil
}
