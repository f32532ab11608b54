package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	filePath      = "/rest/2.0/xpan/file"
	superfilePath = "/rest/2.0/pcs/superfile2"

	// renameTypeOverwrite makes precreate and create replace an existing file at the same path.
	renameTypeOverwrite = 3
)

// RequestID is the provider's request identifier. It arrives either as a JSON number or a string.
type RequestID string

// UnmarshalJSON ...
func (r *RequestID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	*r = RequestID(strings.Trim(string(b), `"`))
	return nil
}

// PrecreateRequest declares a file before any of its content is sent.
type PrecreateRequest struct {
	AccessToken string
	Path        string
	Size        int64
	BlockList   []string
}

// PrecreateResponse ...
type PrecreateResponse struct {
	UploadID   string
	Path       string
	ReturnType int
	// BlockList lists the chunk indices the provider still needs.
	BlockList []int
	RequestID RequestID
}

type precreateResponse struct {
	Errno      *int      `json:"errno"`
	Path       string    `json:"path"`
	UploadID   string    `json:"uploadid"`
	ReturnType int       `json:"return_type"`
	BlockList  []int     `json:"block_list"`
	RequestID  RequestID `json:"request_id"`
}

// ChunkRequest carries one chunk of an open upload session.
type ChunkRequest struct {
	AccessToken string
	Path        string
	UploadID    string
	PartSeq     int
	FileName    string
	Data        []byte
}

// ChunkResponse is the provider's acknowledgement of a chunk.
// MD5 may be empty: the provider does not promise it for every chunk.
type ChunkResponse struct {
	MD5       string
	RequestID RequestID
}

type chunkResponse struct {
	MD5       string    `json:"md5"`
	RequestID RequestID `json:"request_id"`
	ErrorCode int       `json:"error_code"`
	ErrorMsg  string    `json:"error_msg"`
}

// CreateRequest commits an upload session into a file.
type CreateRequest struct {
	AccessToken string
	Path        string
	Size        int64
	UploadID    string
	BlockList   []string
}

// RemoteFile describes a committed file on the netdisk.
type RemoteFile struct {
	FsID           uint64    `json:"fs_id"`
	Path           string    `json:"path"`
	ServerFilename string    `json:"server_filename"`
	Size           int64     `json:"size"`
	MD5            string    `json:"md5"`
	Category       int       `json:"category"`
	IsDir          int       `json:"isdir"`
	Ctime          int64     `json:"ctime"`
	Mtime          int64     `json:"mtime"`
	RequestID      RequestID `json:"request_id,omitempty"`
}

type createResponse struct {
	Errno *int `json:"errno"`
	RemoteFile
}

// Precreate opens an upload session for req.Path.
func (c *Client) Precreate(ctx context.Context, req PrecreateRequest) (PrecreateResponse, error) {
	const op = "precreate"

	blockList, err := json.Marshal(req.BlockList)
	if err != nil {
		return PrecreateResponse{}, &Error{Kind: KindInvalidArgument, Op: op, Detail: "encode block list", Err: err}
	}

	form := url.Values{}
	form.Set("path", req.Path)
	form.Set("isdir", "0")
	form.Set("size", strconv.FormatInt(req.Size, 10))
	form.Set("autoinit", "1")
	form.Set("block_list", string(blockList))
	form.Set("rtype", strconv.Itoa(renameTypeOverwrite))

	httpReq, err := c.newFormRequest(ctx, "precreate", req.AccessToken, form)
	if err != nil {
		return PrecreateResponse{}, NewError(KindInvalidArgument, op, err)
	}

	var response precreateResponse
	if err := c.do(ctx, op, req.AccessToken, httpReq, true, &response); err != nil {
		return PrecreateResponse{}, err
	}

	if err := checkErrno(op, response.Errno); err != nil {
		return PrecreateResponse{}, err
	}
	if response.UploadID == "" {
		return PrecreateResponse{}, Errorf(KindContractViolation, op, "response has no uploadid (request_id: %s)", response.RequestID)
	}

	return PrecreateResponse{
		UploadID:   response.UploadID,
		Path:       response.Path,
		ReturnType: response.ReturnType,
		BlockList:  response.BlockList,
		RequestID:  response.RequestID,
	}, nil
}

// UploadChunk sends one chunk as a multipart body. It validates the HTTP status and the
// provider error code, judging the acknowledged digest is left to the caller.
func (c *Client) UploadChunk(ctx context.Context, req ChunkRequest) (ChunkResponse, error) {
	op := fmt.Sprintf("upload chunk %d", req.PartSeq)

	query := url.Values{}
	query.Set("method", "upload")
	query.Set("access_token", req.AccessToken)
	query.Set("type", "tmpfile")
	query.Set("path", req.Path)
	query.Set("uploadid", req.UploadID)
	query.Set("partseq", strconv.Itoa(req.PartSeq))
	u := fmt.Sprintf("%s%s?%s", c.uploadBaseURL, superfilePath, query.Encode())

	body, contentType, err := multipartBody(req.FileName, req.Data)
	if err != nil {
		return ChunkResponse{}, &Error{Kind: KindInvalidArgument, Op: op, Detail: "build multipart body", Err: err}
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return ChunkResponse{}, NewError(KindInvalidArgument, op, err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	var response chunkResponse
	if err := c.do(ctx, op, req.AccessToken, httpReq, false, &response); err != nil {
		return ChunkResponse{}, err
	}

	if response.ErrorCode != 0 {
		return ChunkResponse{}, Errorf(KindProtocol, op, "error_code %d: %s", response.ErrorCode, response.ErrorMsg)
	}

	return ChunkResponse{MD5: response.MD5, RequestID: response.RequestID}, nil
}

// Create commits the session into a file and returns its descriptor.
func (c *Client) Create(ctx context.Context, req CreateRequest) (RemoteFile, error) {
	const op = "create"

	blockList, err := json.Marshal(req.BlockList)
	if err != nil {
		return RemoteFile{}, &Error{Kind: KindInvalidArgument, Op: op, Detail: "encode block list", Err: err}
	}

	form := url.Values{}
	form.Set("path", req.Path)
	form.Set("isdir", "0")
	form.Set("size", strconv.FormatInt(req.Size, 10))
	form.Set("uploadid", req.UploadID)
	form.Set("block_list", string(blockList))
	form.Set("rtype", strconv.Itoa(renameTypeOverwrite))

	httpReq, err := c.newFormRequest(ctx, "create", req.AccessToken, form)
	if err != nil {
		return RemoteFile{}, NewError(KindInvalidArgument, op, err)
	}

	var response createResponse
	if err := c.do(ctx, op, req.AccessToken, httpReq, true, &response); err != nil {
		return RemoteFile{}, err
	}

	if err := checkErrno(op, response.Errno); err != nil {
		return RemoteFile{}, err
	}
	if response.FsID == 0 {
		return RemoteFile{}, Errorf(KindContractViolation, op, "response has no fs_id (request_id: %s)", response.RequestID)
	}

	return response.RemoteFile, nil
}

func (c *Client) newFormRequest(ctx context.Context, method, token string, form url.Values) (*retryablehttp.Request, error) {
	query := url.Values{}
	query.Set("method", method)
	query.Set("access_token", token)
	u := fmt.Sprintf("%s%s?%s", c.apiBaseURL, filePath, query.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u, []byte(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return req, nil
}

func multipartBody(fileName string, data []byte) ([]byte, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	h.Set("Content-Type", "application/octet-stream")

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write file data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return b.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func checkErrno(op string, errno *int) error {
	if errno == nil {
		return Errorf(KindProtocol, op, "response has no errno")
	}
	if *errno != 0 {
		return Errorf(KindProtocol, op, "provider returned errno %d", *errno)
	}
	return nil
}
