// Package client talks to the read-only API served by shuffled.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/havocworlds/shuffle/go-offchain/pkg/api"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/deploy"
	"github.com/pkg/errors"
)

func NewClient(url string) ShuffleClient {
	return ShuffleClient{
		url:        strings.TrimRight(url, "/"),
		httpClient: cleanhttp.DefaultClient(),
	}
}

type ShuffleClient struct {
	url        string
	httpClient *http.Client
}

// HTTPClient exposes the underlying client, mostly for tests.
func (sc ShuffleClient) HTTPClient() *http.Client {
	return sc.httpClient
}

type errorBody struct {
	Error string `json:"error"`
}

func (sc ShuffleClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := sc.url + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		var e errorBody
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return errors.Errorf("%s: %s: %s", path, resp.Status, e.Error)
		}
		return errors.Errorf("%s: %s", path, resp.Status)
	}
	return errors.Wrapf(json.Unmarshal(body, out), "decode %s", path)
}

func (sc ShuffleClient) Deployment(ctx context.Context) (*deploy.Deployment, error) {
	var d deploy.Deployment
	if err := sc.get(ctx, "deployment", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (sc ShuffleClient) Utxos(ctx context.Context, addr types.Address) ([]types.Utxo, error) {
	var utxos []types.Utxo
	if err := sc.get(ctx, fmt.Sprintf("utxos/%s", addr), nil, &utxos); err != nil {
		return nil, err
	}
	return utxos, nil
}

func (sc ShuffleClient) CanonicalOrder(ctx context.Context, addr types.Address) ([]api.IndexedUtxo, error) {
	var out []api.IndexedUtxo
	if err := sc.get(ctx, fmt.Sprintf("utxos/%s/canonical", addr), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeploySelection previews a deployment from addr. A zero floor keeps the
// server's default.
func (sc ShuffleClient) DeploySelection(ctx context.Context, addr types.Address, reserved *types.UtxoRef, floor uint64) (*api.DeploySelection, error) {
	q := url.Values{}
	if reserved != nil {
		q.Set("reserved", reserved.String())
	}
	if floor > 0 {
		q.Set("floor", strconv.FormatUint(floor, 10))
	}
	var sel api.DeploySelection
	if err := sc.get(ctx, fmt.Sprintf("deploy-selection/%s", addr), q, &sel); err != nil {
		return nil, err
	}
	return &sel, nil
}

func (sc ShuffleClient) Requests(ctx context.Context) (*api.VaultContents, error) {
	var vc api.VaultContents
	if err := sc.get(ctx, "requests", nil, &vc); err != nil {
		return nil, err
	}
	return &vc, nil
}
