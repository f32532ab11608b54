package chunkuploader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"

	"github.com/bitrise-io/go-netdisk/netdisk/checksum"
	"github.com/bitrise-io/go-netdisk/netdisk/network"
)

// Uploader sends the chunks of a session one at a time, in ascending order.
// A chunk is only sent after the previous one was acknowledged, and the first
// failure ends the upload.
type Uploader struct {
	sender ChunkSender
	config Config
	logger log.Logger
	stats  *Stats
}

// New creates a new Uploader with the given configuration.
func New(sender ChunkSender, config Config, logger log.Logger) *Uploader {
	return &Uploader{
		sender: sender,
		config: config,
		logger: logger,
		stats:  NewStats(),
	}
}

// Upload transmits every chunk of provider into session.
func (u *Uploader) Upload(ctx context.Context, session Session, provider ChunkProvider) error {
	numChunks := provider.NumChunks()
	if numChunks != len(session.Digests) {
		return network.Errorf(network.KindInvalidArgument, "upload chunks",
			"chunk count mismatch: provider has %d chunks, but %d digests were declared", numChunks, len(session.Digests))
	}

	var sent int64
	for i := 0; i < numChunks; i++ {
		if ctx.Err() != nil {
			return network.CancelledError(ctx, fmt.Sprintf("upload chunk %d", i))
		}

		n, err := u.uploadChunk(ctx, session, provider, i, numChunks)
		if err != nil {
			return err
		}
		sent += n

		if u.config.Progress != nil {
			u.config.Progress(Progress{
				UploadID:   session.UploadID,
				ChunkIndex: i,
				ChunkCount: numChunks,
				BytesSent:  sent,
				TotalBytes: session.Plan.FileSize,
			})
		}
	}

	return nil
}

// Stats returns the upload statistics.
func (u *Uploader) Stats() *Stats {
	return u.stats
}

func (u *Uploader) uploadChunk(ctx context.Context, session Session, provider ChunkProvider, index, numChunks int) (int64, error) {
	op := fmt.Sprintf("upload chunk %d", index)

	data, err := provider.GetChunk(index)
	if err != nil {
		return 0, err
	}

	// The declared digest came from an earlier read of the file.
	digest := checksum.Digest(data)
	if digest != session.Digests[index] {
		return 0, network.Errorf(network.KindLocalFile, op,
			"file changed since it was hashed: chunk digest is %s, declared %s", digest, session.Digests[index])
	}

	u.logger.Debugf("Uploading chunk %d/%d (%s) [finished=%d] [avg=%v]",
		index+1, numChunks, units.HumanSize(float64(len(data))),
		u.stats.FinishedCount(), u.stats.Average().Round(time.Millisecond))

	start := time.Now()
	resp, err := u.sender.UploadChunk(ctx, network.ChunkRequest{
		AccessToken: session.AccessToken,
		Path:        session.Target.RemotePath,
		UploadID:    session.UploadID,
		PartSeq:     index,
		FileName:    session.Target.FileName(),
		Data:        data,
	})
	if err != nil {
		return 0, err
	}
	took := time.Since(start)

	if err := u.checkAck(session, index, digest, resp); err != nil {
		return 0, err
	}

	u.stats.Update(took, int64(len(data)))
	u.logger.Infof("Chunk %d/%d uploaded in %v", index+1, numChunks, took.Round(time.Millisecond))

	return int64(len(data)), nil
}

// checkAck judges the digest echoed by the provider. A wrong digest always fails.
// A missing digest fails only when the whole file went out in a single chunk.
func (u *Uploader) checkAck(session Session, index int, digest string, resp network.ChunkResponse) error {
	op := fmt.Sprintf("upload chunk %d", index)

	if resp.MD5 == "" {
		if session.SingleShot() {
			return network.Errorf(network.KindContractViolation, op, "acknowledgement has no md5 (request_id: %s)", resp.RequestID)
		}
		u.stats.AddMissingAck()
		u.logger.Warnf("Chunk %d acknowledged without md5 (request_id: %s), continuing", index, resp.RequestID)
		return nil
	}

	if !checksum.Valid(strings.ToLower(resp.MD5)) {
		return network.Errorf(network.KindContractViolation, op, "acknowledgement has malformed md5 %q", resp.MD5)
	}
	if !strings.EqualFold(resp.MD5, digest) {
		return network.Errorf(network.KindContractViolation, op,
			"acknowledged md5 %s does not match sent chunk md5 %s", resp.MD5, digest)
	}

	return nil
}
