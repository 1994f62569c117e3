package client

import (
	"context"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/codecache/codecache"
)

// Client defines codecache admin operations.
type Client interface {
	// FlushWarmVMs drops every warm VM and returns how many were dropped
	FlushWarmVMs(ctx context.Context) (uint64, error)

	// WarmVMStats returns the size and capacity of the warm VM cache
	WarmVMStats(ctx context.Context) (uint64, uint64, error)

	// Fingerprint returns the current WarmVMID and whether it is warm
	Fingerprint(ctx context.Context) (ids.ID, bool, error)

	// GetModule fetches the code and code hash of a published module
	GetModule(ctx context.Context, id string) ([]byte, ids.ID, error)

	// ClearModuleStateCache drops the durable module cache
	ClearModuleStateCache(ctx context.Context) (bool, error)
}

// New creates a new client object for the node at [uri].
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri, "/ext/"+codecache.Name, codecache.Name)
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) FlushWarmVMs(ctx context.Context) (uint64, error) {
	resp := new(codecache.FlushWarmVMsReply)
	if err := cli.req.SendRequest(ctx, "flushWarmVMs", &struct{}{}, resp); err != nil {
		return 0, err
	}
	return uint64(resp.Dropped), nil
}

func (cli *client) WarmVMStats(ctx context.Context) (uint64, uint64, error) {
	resp := new(codecache.WarmVMStatsReply)
	if err := cli.req.SendRequest(ctx, "warmVMStats", &struct{}{}, resp); err != nil {
		return 0, 0, err
	}
	return uint64(resp.Size), uint64(resp.Capacity), nil
}

func (cli *client) Fingerprint(ctx context.Context) (ids.ID, bool, error) {
	resp := new(codecache.FingerprintReply)
	if err := cli.req.SendRequest(ctx, "fingerprint", &struct{}{}, resp); err != nil {
		return ids.Empty, false, err
	}
	return resp.ID, resp.Warm, nil
}

func (cli *client) GetModule(ctx context.Context, id string) ([]byte, ids.ID, error) {
	resp := new(codecache.GetModuleReply)
	err := cli.req.SendRequest(ctx, "getModule", &codecache.GetModuleArgs{ID: id}, resp)
	if err != nil {
		return nil, ids.Empty, err
	}
	code, err := formatting.Decode(resp.Encoding, resp.Code)
	if err != nil {
		return nil, ids.Empty, err
	}
	return code, resp.Hash, nil
}

func (cli *client) ClearModuleStateCache(ctx context.Context) (bool, error) {
	resp := new(api.SuccessResponse)
	err := cli.req.SendRequest(ctx, "clearModuleStateCache", &struct{}{}, resp)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}
