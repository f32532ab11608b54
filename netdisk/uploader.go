// Package netdisk uploads local files to a cloud netdisk using its chunked upload protocol:
// the file is declared with its chunk digests, every chunk is sent in order, and the
// session is committed into a file.
package netdisk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/bitrise-io/go-netdisk/internal"
	"github.com/bitrise-io/go-netdisk/netdisk/network"
	"github.com/bitrise-io/go-netdisk/netdisk/network/chunkuploader"
)

// UploadParams ...
type UploadParams struct {
	LocalPath string
	// RemoteDir is the netdisk directory receiving the file. Empty means Config.DefaultRemoteDir.
	RemoteDir   string
	AccessToken string
}

// Uploader ...
type Uploader interface {
	Upload(ctx context.Context, params UploadParams) (network.RemoteFile, error)
}

// SessionClient is the provider API an upload goes through. *network.Client implements it.
type SessionClient interface {
	chunkuploader.ChunkSender
	Precreate(ctx context.Context, req network.PrecreateRequest) (network.PrecreateResponse, error)
	Create(ctx context.Context, req network.CreateRequest) (network.RemoteFile, error)
}

type uploader struct {
	client SessionClient
	config Config
	logger log.Logger
	os     internal.OsProxy

	mu        sync.Mutex
	lastStats *chunkuploader.Stats
}

// NewUploader creates an upload orchestrator. The client is shared by every upload made
// through it, a session never outlives a single Upload call.
func NewUploader(client SessionClient, config Config, logger log.Logger) (*uploader, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upload config: %w", err)
	}
	if config.DefaultRemoteDir == "" {
		config.DefaultRemoteDir = DefaultRemoteDir
	}

	return &uploader{
		client: client,
		config: config,
		logger: logger,
		os:     internal.RealOS{},
	}, nil
}

// Upload sends the file at params.LocalPath to the netdisk and returns the committed file.
// The first failure ends the upload, the open session is left to expire on the provider side.
func (u *uploader) Upload(ctx context.Context, params UploadParams) (network.RemoteFile, error) {
	id := uuid.NewString()
	u.logger.TDebugf("[%s] Upload start", id)
	defer func() {
		u.logger.TDebugf("[%s] Upload done", id)
	}()

	if params.AccessToken == "" {
		return network.RemoteFile{}, network.Errorf(network.KindInvalidArgument, "upload", "access token is empty")
	}

	size, err := u.validateLocalFile(params.LocalPath)
	if err != nil {
		return network.RemoteFile{}, err
	}

	remoteDir := params.RemoteDir
	if remoteDir == "" {
		remoteDir = u.config.DefaultRemoteDir
	}
	target, err := network.NewTarget(params.LocalPath, remoteDir)
	if err != nil {
		return network.RemoteFile{}, err
	}
	u.logger.Infof("[%s] Uploading %s (%s) to %s", id, params.LocalPath, units.HumanSizeWithPrecision(float64(size), 3), target.RemotePath)

	plan := chunkuploader.NewPlan(size, u.config.ChunkSize)
	hashStart := time.Now()
	digests, err := chunkuploader.DigestFile(params.LocalPath, plan)
	if err != nil {
		return network.RemoteFile{}, err
	}
	u.logger.Debugf("[%s] Hashed %d chunk(s) in %s", id, plan.NumChunks(), time.Since(hashStart).Round(time.Millisecond))

	if ctx.Err() != nil {
		return network.RemoteFile{}, network.CancelledError(ctx, "precreate")
	}
	precreate, err := u.client.Precreate(ctx, network.PrecreateRequest{
		AccessToken: params.AccessToken,
		Path:        target.RemotePath,
		Size:        size,
		BlockList:   digests,
	})
	if err != nil {
		return network.RemoteFile{}, err
	}
	u.logger.Debugf("[%s] Session %s opened, provider requests blocks %v", id, precreate.UploadID, precreate.BlockList)

	session := chunkuploader.Session{
		UploadID:    precreate.UploadID,
		AccessToken: params.AccessToken,
		Target:      target,
		Plan:        plan,
		Digests:     digests,
	}
	if err := u.transmit(ctx, session, params.LocalPath); err != nil {
		return network.RemoteFile{}, err
	}

	if ctx.Err() != nil {
		return network.RemoteFile{}, network.CancelledError(ctx, "create")
	}
	remoteFile, err := u.client.Create(ctx, network.CreateRequest{
		AccessToken: params.AccessToken,
		Path:        target.RemotePath,
		Size:        size,
		UploadID:    session.UploadID,
		BlockList:   digests,
	})
	if err != nil {
		return network.RemoteFile{}, err
	}

	u.logger.Donef("[%s] Uploaded %s as %s (fs_id: %d)", id, params.LocalPath, remoteFile.Path, remoteFile.FsID)

	return remoteFile, nil
}

// Stats returns the chunk statistics of the most recently started upload, or nil before the first one.
func (u *uploader) Stats() *chunkuploader.Stats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastStats
}

func (u *uploader) validateLocalFile(path string) (int64, error) {
	const op = "validate local file"

	if path == "" {
		return 0, network.Errorf(network.KindLocalFile, op, "local path is empty")
	}
	info, err := u.os.Stat(path)
	if err != nil {
		return 0, network.NewError(network.KindLocalFile, op, err)
	}
	if !info.Mode().IsRegular() {
		return 0, network.Errorf(network.KindLocalFile, op, "%s is not a regular file", path)
	}

	return info.Size(), nil
}

func (u *uploader) transmit(ctx context.Context, session chunkuploader.Session, path string) error {
	provider, err := chunkuploader.NewFileChunkProvider(path, session.Plan)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			u.logger.Warnf("Failed to close %s: %s", path, err)
		}
	}()

	chunks := chunkuploader.New(u.client, u.config.chunkConfig(), u.logger)
	u.mu.Lock()
	u.lastStats = chunks.Stats()
	u.mu.Unlock()

	return chunks.Upload(ctx, session, provider)
}
