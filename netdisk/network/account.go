package network

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	quotaPath = "/api/quota"
	nasPath   = "/rest/2.0/xpan/nas"
)

// QuotaOptions ...
type QuotaOptions struct {
	// CheckExpire asks the provider whether capacity expires within seven days.
	CheckExpire bool
	// CheckFree asks the provider to include the free capacity.
	CheckFree bool
}

// Quota is the account's storage usage in bytes.
type Quota struct {
	Total     uint64    `json:"total"`
	Used      uint64    `json:"used"`
	Free      uint64    `json:"free,omitempty"`
	Expire    bool      `json:"expire,omitempty"`
	RequestID RequestID `json:"request_id"`
}

type quotaResponse struct {
	Errno *int `json:"errno"`
	Quota
}

// UserInfo ...
type UserInfo struct {
	BaiduName   string    `json:"baidu_name"`
	NetdiskName string    `json:"netdisk_name"`
	AvatarURL   string    `json:"avatar_url"`
	VipType     int       `json:"vip_type"`
	UK          uint64    `json:"uk"`
	RequestID   RequestID `json:"request_id"`
}

type userInfoResponse struct {
	Errno *int `json:"errno"`
	UserInfo
}

// Quota returns the storage usage of the account owning token.
func (c *Client) Quota(ctx context.Context, token string, opts QuotaOptions) (Quota, error) {
	const op = "get quota"

	query := url.Values{}
	query.Set("openapi", "xpansdk")
	query.Set("access_token", token)
	if opts.CheckExpire {
		query.Set("checkexpire", "1")
	}
	if opts.CheckFree {
		query.Set("checkfree", "1")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s?%s", c.apiBaseURL, quotaPath, query.Encode()), nil)
	if err != nil {
		return Quota{}, NewError(KindInvalidArgument, op, err)
	}

	var response quotaResponse
	if err := c.do(ctx, op, token, req, false, &response); err != nil {
		return Quota{}, err
	}
	if err := checkErrno(op, response.Errno); err != nil {
		return Quota{}, err
	}

	return response.Quota, nil
}

// UserInfo returns the basic profile of the account owning token.
func (c *Client) UserInfo(ctx context.Context, token string) (UserInfo, error) {
	const op = "get user info"

	query := url.Values{}
	query.Set("method", "uinfo")
	query.Set("openapi", "xpansdk")
	query.Set("access_token", token)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s?%s", c.apiBaseURL, nasPath, query.Encode()), nil)
	if err != nil {
		return UserInfo{}, NewError(KindInvalidArgument, op, err)
	}

	var response userInfoResponse
	if err := c.do(ctx, op, token, req, false, &response); err != nil {
		return UserInfo{}, err
	}
	if err := checkErrno(op, response.Errno); err != nil {
		return UserInfo{}, err
	}

	return response.UserInfo, nil
}
