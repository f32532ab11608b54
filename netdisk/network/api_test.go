package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "secret-token-123"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientParams{APIBaseURL: server.URL, UploadBaseURL: server.URL}, log.NewLogger())
	t.Cleanup(client.CloseIdleConnections)

	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
}

func TestClient_Precreate(t *testing.T) {
	var gotQuery, gotForm map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, filePath, r.URL.Path)
		require.NoError(t, r.ParseForm())

		gotQuery = map[string]string{
			"method":       r.URL.Query().Get("method"),
			"access_token": r.URL.Query().Get("access_token"),
		}
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		writeJSON(t, w, `{"errno":0,"path":"/apps/a.txt","uploadid":"N1-abc","return_type":1,"block_list":[0,1],"request_id":9021}`)
	})

	resp, err := client.Precreate(context.Background(), PrecreateRequest{
		AccessToken: testToken,
		Path:        "/apps/a.txt",
		Size:        42,
		BlockList:   []string{"aaa", "bbb"},
	})
	require.NoError(t, err)

	assert.Equal(t, PrecreateResponse{
		UploadID:   "N1-abc",
		Path:       "/apps/a.txt",
		ReturnType: 1,
		BlockList:  []int{0, 1},
		RequestID:  "9021",
	}, resp)
	assert.Equal(t, map[string]string{"method": "precreate", "access_token": testToken}, gotQuery)
	assert.Equal(t, map[string]string{
		"path":       "/apps/a.txt",
		"isdir":      "0",
		"size":       "42",
		"autoinit":   "1",
		"block_list": `["aaa","bbb"]`,
		"rtype":      "3",
	}, gotForm)
}

func TestClient_Precreate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantMsg  string
	}{
		{
			name:     "non-zero errno",
			status:   http.StatusOK,
			body:     `{"errno":-7,"request_id":1}`,
			wantKind: KindProtocol,
			wantMsg:  "errno -7",
		},
		{
			name:     "missing errno",
			status:   http.StatusOK,
			body:     `{"uploadid":"x"}`,
			wantKind: KindProtocol,
			wantMsg:  "no errno",
		},
		{
			name:     "missing uploadid",
			status:   http.StatusOK,
			body:     `{"errno":0,"request_id":"77"}`,
			wantKind: KindContractViolation,
			wantMsg:  "no uploadid",
		},
		{
			name:     "non-2xx status",
			status:   http.StatusForbidden,
			body:     `{"errno":-6}`,
			wantKind: KindProtocol,
			wantMsg:  "HTTP 403",
		},
		{
			name:     "undecodable body",
			status:   http.StatusOK,
			body:     `<html>gateway</html>`,
			wantKind: KindProtocol,
			wantMsg:  "decode response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Precreate(context.Background(), PrecreateRequest{AccessToken: testToken, Path: "/a", Size: 1, BlockList: []string{"x"}})
			require.Error(t, err)

			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, kind)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.True(t, strings.HasPrefix(err.Error(), "precreate: "))
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := NewClient(ClientParams{APIBaseURL: server.URL, UploadBaseURL: server.URL}, log.NewLogger())

	_, err := client.Precreate(context.Background(), PrecreateRequest{AccessToken: testToken, Path: "/a", Size: 1, BlockList: []string{"x"}})
	require.Error(t, err)

	assert.True(t, IsKind(err, KindTransport))
	assert.NotContains(t, err.Error(), testToken)
}

func TestClient_TransportError_EscapedToken(t *testing.T) {
	const token = "121.a+b/c=d"
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := NewClient(ClientParams{APIBaseURL: server.URL, UploadBaseURL: server.URL}, log.NewLogger())

	_, err := client.Precreate(context.Background(), PrecreateRequest{AccessToken: token, Path: "/a", Size: 1, BlockList: []string{"x"}})
	require.Error(t, err)

	assert.True(t, IsKind(err, KindTransport))
	assert.NotContains(t, err.Error(), token)
	assert.NotContains(t, err.Error(), url.QueryEscape(token))
	assert.Contains(t, err.Error(), redacted)
}

func TestRedact(t *testing.T) {
	const token = "121.a+b/c=d"
	dump := "POST /rest/2.0/xpan/file?access_token=" + url.QueryEscape(token) + "&method=precreate HTTP/1.1\r\nX-Raw: " + token

	got := redact(dump, token)

	assert.NotContains(t, got, token)
	assert.NotContains(t, got, url.QueryEscape(token))
	assert.Equal(t, 2, strings.Count(got, redacted))
	assert.Equal(t, dump, redact(dump, ""))
}

func TestClient_CallTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(ClientParams{APIBaseURL: server.URL, UploadBaseURL: server.URL, CallTimeout: 50 * time.Millisecond}, log.NewLogger())

	_, err := client.Create(context.Background(), CreateRequest{AccessToken: testToken, Path: "/a", UploadID: "u"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTransport), "got %v", err)
}

func TestClient_Cancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `{"errno":0,"uploadid":"x"}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Precreate(ctx, PrecreateRequest{AccessToken: testToken, Path: "/a", Size: 1, BlockList: []string{"x"}})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCancelled), "got %v", err)
}

func TestClient_UploadChunk(t *testing.T) {
	data := []byte("chunk payload")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, superfilePath, r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "upload", q.Get("method"))
		assert.Equal(t, "tmpfile", q.Get("type"))
		assert.Equal(t, testToken, q.Get("access_token"))
		assert.Equal(t, "/apps/my dir/名字 & more.bin", q.Get("path"))
		assert.Equal(t, "N1-abc", q.Get("uploadid"))
		assert.Equal(t, "2", q.Get("partseq"))
		assert.NotContains(t, r.URL.RawQuery, " ")

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "名字 & more.bin", header.Filename)
		assert.Equal(t, "application/octet-stream", header.Header.Get("Content-Type"))
		got, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, data, got)

		writeJSON(t, w, `{"md5":"0123456789abcdef0123456789abcdef","request_id":555}`)
	})

	resp, err := client.UploadChunk(context.Background(), ChunkRequest{
		AccessToken: testToken,
		Path:        "/apps/my dir/名字 & more.bin",
		UploadID:    "N1-abc",
		PartSeq:     2,
		FileName:    "名字 & more.bin",
		Data:        data,
	})
	require.NoError(t, err)

	assert.Equal(t, ChunkResponse{MD5: "0123456789abcdef0123456789abcdef", RequestID: "555"}, resp)
}

func TestClient_UploadChunk_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     "boom",
			wantKind: KindProtocol,
		},
		{
			name:     "provider error code",
			status:   http.StatusOK,
			body:     `{"error_code":31064,"error_msg":"file is not authorized"}`,
			wantKind: KindProtocol,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.UploadChunk(context.Background(), ChunkRequest{AccessToken: testToken, Path: "/a", UploadID: "u", PartSeq: 1, FileName: "a", Data: []byte("x")})
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.wantKind), "got %v", err)
			assert.Contains(t, err.Error(), "upload chunk 1")
		})
	}
}

func TestClient_UploadChunk_MissingDigestIsNotAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `{"request_id":1}`)
	})

	resp, err := client.UploadChunk(context.Background(), ChunkRequest{AccessToken: testToken, Path: "/a", UploadID: "u", FileName: "a", Data: []byte("x")})
	require.NoError(t, err)
	assert.Empty(t, resp.MD5)
}

func TestClient_Create(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "create", r.URL.Query().Get("method"))
		assert.Equal(t, "N1-abc", r.PostForm.Get("uploadid"))
		assert.Equal(t, "3", r.PostForm.Get("rtype"))
		assert.Equal(t, "0", r.PostForm.Get("isdir"))
		assert.Equal(t, "10", r.PostForm.Get("size"))

		var blockList []string
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("block_list")), &blockList))
		assert.Equal(t, []string{"d1", "d2"}, blockList)

		writeJSON(t, w, `{"errno":0,"fs_id":123456789,"md5":"d1d2","server_filename":"a.txt","category":4,"path":"/apps/a.txt","size":10,"ctime":1700000000,"mtime":1700000001,"isdir":0,"request_id":42}`)
	})

	file, err := client.Create(context.Background(), CreateRequest{
		AccessToken: testToken,
		Path:        "/apps/a.txt",
		Size:        10,
		UploadID:    "N1-abc",
		BlockList:   []string{"d1", "d2"},
	})
	require.NoError(t, err)

	assert.Equal(t, RemoteFile{
		FsID:           123456789,
		Path:           "/apps/a.txt",
		ServerFilename: "a.txt",
		Size:           10,
		MD5:            "d1d2",
		Category:       4,
		Ctime:          1700000000,
		Mtime:          1700000001,
		RequestID:      "42",
	}, file)
}

func TestClient_Create_Failures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind ErrorKind
	}{
		{name: "non-zero errno", body: `{"errno":31363}`, wantKind: KindProtocol},
		{name: "missing fs_id", body: `{"errno":0,"path":"/a"}`, wantKind: KindContractViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.body)
			})

			_, err := client.Create(context.Background(), CreateRequest{AccessToken: testToken, Path: "/a", UploadID: "u", BlockList: []string{"x"}})
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.wantKind), "got %v", err)
		})
	}
}

func TestClient_Quota(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, quotaPath, r.URL.Path)
		assert.Equal(t, "xpansdk", r.URL.Query().Get("openapi"))
		assert.Equal(t, "1", r.URL.Query().Get("checkfree"))
		assert.Empty(t, r.URL.Query().Get("checkexpire"))

		writeJSON(t, w, `{"errno":0,"total":2000,"used":500,"free":1500,"request_id":1}`)
	})

	quota, err := client.Quota(context.Background(), testToken, QuotaOptions{CheckFree: true})
	require.NoError(t, err)
	assert.Equal(t, Quota{Total: 2000, Used: 500, Free: 1500, RequestID: "1"}, quota)
}

func TestClient_UserInfo(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    UserInfo
		wantErr bool
	}{
		{
			name: "valid response",
			body: `{"errno":0,"request_id":"674030589892837910","baidu_name":"b","netdisk_name":"n","avatar_url":"https://a","vip_type":2,"uk":1234}`,
			want: UserInfo{BaiduName: "b", NetdiskName: "n", AvatarURL: "https://a", VipType: 2, UK: 1234, RequestID: "674030589892837910"},
		},
		{
			name:    "expired token",
			body:    `{"errno":-6,"request_id":"1"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, nasPath, r.URL.Path)
				assert.Equal(t, "uinfo", r.URL.Query().Get("method"))
				writeJSON(t, w, tt.body)
			})

			got, err := client.UserInfo(context.Background(), testToken)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindProtocol))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{name: "detail only", err: Errorf(KindProtocol, "create", "provider returned errno %d", 2), want: "create: provider returned errno 2"},
		{name: "wrapped only", err: NewError(KindLocalFile, "open", fmt.Errorf("no such file")), want: "open: no such file"},
		{name: "detail and wrapped", err: &Error{Kind: KindProtocol, Op: "create", Detail: "decode response", Err: fmt.Errorf("EOF")}, want: "create: decode response: EOF"},
		{name: "no op", err: &Error{Kind: KindProtocol, Detail: "x"}, want: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("upload failed: %w", Errorf(KindContractViolation, "create", "x"))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindContractViolation, kind)

	_, ok = KindOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestNewTarget(t *testing.T) {
	tests := []struct {
		name      string
		localPath string
		remoteDir string
		want      string
		wantErr   bool
	}{
		{name: "plain dir", localPath: "/home/u/a.txt", remoteDir: "/apps/x", want: "/apps/x/a.txt"},
		{name: "trailing separator", localPath: "/home/u/a.txt", remoteDir: "/apps/x/", want: "/apps/x/a.txt"},
		{name: "several trailing separators", localPath: "a.txt", remoteDir: "/apps/x//", want: "/apps/x/a.txt"},
		{name: "root", localPath: "/home/u/a.txt", remoteDir: "/", want: "/a.txt"},
		{name: "empty local path", localPath: "", remoteDir: "/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTarget(tt.localPath, tt.remoteDir)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.RemotePath)
			assert.Equal(t, tt.localPath, got.LocalPath)
		})
	}
}
