package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/deploy"
	"github.com/havocworlds/shuffle/go-offchain/pkg/selection"
	"github.com/havocworlds/shuffle/go-offchain/pkg/shuffle"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/lightningnetwork/lnd/fn"
	"github.com/pkg/errors"
)

var errNoProtocol = errors.New("no protocol blueprint loaded")

// Service is what the handlers read from. Protocol is nil when the server
// runs without a blueprint; the routes that need it answer 503.
type Service struct {
	Utxos          cardano.UtxoProvider
	Protocol       *shuffle.Protocol
	DeploymentFile string
	FundingFloor   uint64
}

// IndexedUtxo is a utxo with its position in canonical order.
type IndexedUtxo struct {
	Index uint64     `json:"index"`
	Ref   string     `json:"ref"`
	Utxo  types.Utxo `json:"utxo"`
}

type DeploySelection struct {
	Selected    []types.Utxo        `json:"selected"`
	ByPoolIndex map[int]types.Utxo  `json:"by_pool_index"`
	Unfilled    []types.AssetID     `json:"unfilled,omitempty"`
	Lovelace    uint64              `json:"lovelace"`
	Floor       uint64              `json:"floor"`
	Beacons     deploy.BeaconTokens `json:"beacons"`
}

type VaultContents struct {
	Requests []shuffle.Request `json:"requests"`
	Pool     []types.Utxo      `json:"pool"`
}

func addressParam(r *http.Request) (types.Address, error) {
	addr := types.Address(chi.URLParam(r, "addr"))
	if _, err := addr.PaymentCredential(); err != nil {
		return "", errors.Wrapf(err, "invalid address %q", addr)
	}
	return addr, nil
}

func getDeployment(w http.ResponseWriter, r *http.Request) {
	svc := GetService(r)
	d, err := deploy.Load(svc.DeploymentFile)
	if err != nil {
		ErrResponse(w, http.StatusInternalServerError, err)
		return
	}
	JsonResponse(w, http.StatusOK, d)
}

func listUtxos(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		ErrResponse(w, http.StatusBadRequest, err)
		return
	}
	utxos, err := GetService(r).Utxos.UtxosAt(r.Context(), addr)
	if err != nil {
		ErrResponse(w, http.StatusBadGateway, err)
		return
	}
	JsonResponse(w, http.StatusOK, txbuilder.SortCanonically(utxos))
}

// canonicalOrder lists the utxos at an address as they would be indexed if
// all of them were spent by one transaction.
func canonicalOrder(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		ErrResponse(w, http.StatusBadRequest, err)
		return
	}
	utxos, err := GetService(r).Utxos.UtxosAt(r.Context(), addr)
	if err != nil {
		ErrResponse(w, http.StatusBadGateway, err)
		return
	}
	order, err := txbuilder.OrderCanonically(utxos)
	if err != nil {
		ErrResponse(w, http.StatusConflict, err)
		return
	}
	out := make([]IndexedUtxo, 0, len(utxos))
	for _, u := range txbuilder.SortCanonically(utxos) {
		idx, _ := order.Index(u.UtxoRef)
		out = append(out, IndexedUtxo{Index: idx, Ref: u.String(), Utxo: u})
	}
	JsonResponse(w, http.StatusOK, out)
}

// deploySelection previews the utxos a reference script deployment from addr
// would spend. The optional reserved query parameter names a utxo that must
// stay untouched, floor overrides the funding floor.
func deploySelection(w http.ResponseWriter, r *http.Request) {
	svc := GetService(r)
	if svc.Protocol == nil {
		ErrResponse(w, http.StatusServiceUnavailable, errNoProtocol)
		return
	}
	addr, err := addressParam(r)
	if err != nil {
		ErrResponse(w, http.StatusBadRequest, err)
		return
	}

	reserved := fn.None[types.UtxoRef]()
	if s := r.URL.Query().Get("reserved"); s != "" {
		ref, err := types.ParseUtxoRef(s)
		if err != nil {
			ErrResponse(w, http.StatusBadRequest, err)
			return
		}
		reserved = fn.Some(ref)
	}
	floor := svc.FundingFloor
	if s := r.URL.Query().Get("floor"); s != "" {
		if floor, err = strconv.ParseUint(s, 10, 64); err != nil {
			ErrResponse(w, http.StatusBadRequest, errors.Wrap(err, "floor"))
			return
		}
	}

	pool, err := svc.Utxos.UtxosAt(r.Context(), addr)
	if err != nil {
		ErrResponse(w, http.StatusBadGateway, err)
		return
	}
	beacons := svc.Protocol.Beacons
	sel := selection.SelectDeployUtxos(pool, beacons.All(), reserved, floor)
	JsonResponse(w, http.StatusOK, DeploySelection{
		Selected:    sel.Selected,
		ByPoolIndex: sel.ByPoolIndex,
		Unfilled:    sel.Unfilled,
		Lovelace:    sel.Lovelace(),
		Floor:       floor,
		Beacons:     beacons,
	})
}

func listRequests(w http.ResponseWriter, r *http.Request) {
	svc := GetService(r)
	if svc.Protocol == nil {
		ErrResponse(w, http.StatusServiceUnavailable, errNoProtocol)
		return
	}
	reqs, pool, err := shuffle.VaultContents(r.Context(), svc.Utxos, svc.Protocol)
	if err != nil {
		ErrResponse(w, http.StatusBadGateway, err)
		return
	}
	JsonResponse(w, http.StatusOK, VaultContents{Requests: reqs, Pool: pool})
}
