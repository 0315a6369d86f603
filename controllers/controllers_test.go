package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/pipeline"
	"github.com/olowe/batchmint-4337/store"
	"github.com/olowe/batchmint-4337/userop"
)

var (
	ownerAddr   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	accountAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// MockDeployer implements Deployer for testing.
type MockDeployer struct {
	mock.Mock
}

func (m *MockDeployer) Owner() common.Address {
	return ownerAddr
}

func (m *MockDeployer) Deploy(ctx context.Context, tokens []models.TokenParam, onStage pipeline.StageFunc) (*pipeline.Result, error) {
	args := m.Called(ctx, tokens, onStage)
	res := args.Get(0).(*pipeline.Result)
	emit(res, onStage)
	return res, args.Error(1)
}

func (m *MockDeployer) Relay(ctx context.Context, op userop.UserOperation, onStage pipeline.StageFunc) (*pipeline.Result, error) {
	args := m.Called(ctx, op, onStage)
	res := args.Get(0).(*pipeline.Result)
	emit(res, onStage)
	return res, args.Error(1)
}

func (m *MockDeployer) Account(ctx context.Context) (*pipeline.AccountInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.AccountInfo), args.Error(1)
}

func (m *MockDeployer) Tokens(ctx context.Context) ([]models.DeployedToken, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DeployedToken), args.Error(1)
}

func emit(res *pipeline.Result, onStage pipeline.StageFunc) {
	if onStage == nil {
		return
	}
	for _, s := range res.Stages {
		onStage(s)
	}
}

// MockStore implements store.Store for testing.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, rec models.DeploymentRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockStore) List(ctx context.Context, owner common.Address, limit int) ([]models.DeploymentRecord, error) {
	args := m.Called(ctx, owner, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DeploymentRecord), args.Error(1)
}

func (m *MockStore) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func okResult() *pipeline.Result {
	return &pipeline.Result{
		Stages: []models.TxStage{
			models.StageIdle, models.StageBuilding, models.StageSigning,
			models.StageSimulatingHandleOps, models.StageSubmittingHandleOps, models.StageMiningHandleOps,
			models.StageSuccess,
		},
		Outcome: models.DeploymentOutcome{
			Status: models.OutcomeOK,
			DeployedTokens: []models.DeployedToken{
				{ID: "Deployed0", Name: "A", Symbol: "AAA", TokenAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
			},
			SkippedTokens:   []models.SkippedToken{},
			TransactionHash: common.HexToHash("0x02").Hex(),
		},
	}
}

func failedResult(err error) *pipeline.Result {
	return &pipeline.Result{
		Stages:  []models.TxStage{models.StageIdle, models.StageError},
		Outcome: models.ErrorOutcome(pipeline.HumanMessage(err)),
		Err:     err,
	}
}

func newRouter(d Deployer, st store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	deployments := NewDeploymentController(d, st, zerolog.Nop())
	r.POST("/deployments", deployments.Deploy)
	r.GET("/deployments", deployments.List)
	accounts := NewAccountController(d, zerolog.Nop())
	r.GET("/account", accounts.GetAccount)
	r.GET("/account/tokens", accounts.ListTokens)
	r.POST("/userOp", NewUserOpController(d, zerolog.Nop()).StoreUserOp)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const batchBody = `{"tokens":[{"name":"A","symbol":"AAA","totalSupply":"1000"},{"name":"B","symbol":"BBB","totalSupply":"2000"}]}`

func TestDeploy_OK(t *testing.T) {
	d := new(MockDeployer)
	d.On("Deploy", mock.Anything, []models.TokenParam{
		{Name: "A", Symbol: "AAA", TotalSupply: big.NewInt(1000)},
		{Name: "B", Symbol: "BBB", TotalSupply: big.NewInt(2000)},
	}, mock.Anything).Return(okResult(), nil)

	w := doJSON(newRouter(d, nil), http.MethodPost, "/deployments", batchBody)
	require.Equal(t, http.StatusOK, w.Code)

	var out models.DeploymentOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, models.OutcomeOK, out.Status)
	require.Len(t, out.DeployedTokens, 1)
	assert.Equal(t, "Deployed0", out.DeployedTokens[0].ID)
	d.AssertExpectations(t)
}

func TestDeploy_InvalidRequest(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"tokens":[]}`,
		`{"tokens":[{"name":"A","symbol":"AAA","totalSupply":"lots"}]}`,
		`{"tokens":[{"symbol":"AAA","totalSupply":"1"}]}`,
		`not json`,
		// 2^256 + 1000
		`{"tokens":[{"name":"A","symbol":"AAA","totalSupply":"115792089237316195423570985008687907853269984665640564039457584007913129640936"}]}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			d := new(MockDeployer)
			w := doJSON(newRouter(d, nil), http.MethodPost, "/deployments", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"status":"error"`)
			d.AssertNotCalled(t, "Deploy", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDeploy_ErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "in flight",
			err:        &pipeline.StageError{Stage: models.StageBuilding, Kind: pipeline.KindConflict, Err: pipeline.ErrAttemptInFlight},
			wantStatus: http.StatusConflict,
			wantMsg:    pipeline.ErrAttemptInFlight.Error(),
		},
		{
			name:       "unavailable",
			err:        &pipeline.StageError{Stage: models.StageBuilding, Kind: pipeline.KindConfiguration, Err: fmt.Errorf("%w: missing entryPoint", pipeline.ErrOperationNotAvailable)},
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "operation not available: missing entryPoint",
		},
		{
			name:       "revert",
			err:        &pipeline.StageError{Stage: models.StageSimulatingHandleOps, Kind: pipeline.KindSimulation, Err: errors.New("execution reverted: AA23 reverted")},
			wantStatus: http.StatusBadGateway,
			wantMsg:    "AA23 reverted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(MockDeployer)
			d.On("Deploy", mock.Anything, mock.Anything, mock.Anything).Return(failedResult(tt.err), tt.err)

			w := doJSON(newRouter(d, nil), http.MethodPost, "/deployments", batchBody)
			assert.Equal(t, tt.wantStatus, w.Code)

			var out models.DeploymentOutcome
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
			assert.Equal(t, models.OutcomeError, out.Status)
			assert.Equal(t, tt.wantMsg, out.Error)
			assert.NotNil(t, out.DeployedTokens)
			assert.NotNil(t, out.SkippedTokens)
		})
	}
}

func TestDeploy_EventStream(t *testing.T) {
	d := new(MockDeployer)
	d.On("Deploy", mock.Anything, mock.Anything, mock.Anything).Return(okResult(), nil)

	srv := httptest.NewServer(newRouter(d, nil))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/deployments", bytes.NewBufferString(batchBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Equal(t, 7, strings.Count(text, "event:stage"))
	assert.Contains(t, text, `"stage":"mining-handleOps"`)
	assert.Equal(t, 1, strings.Count(text, "event:outcome"))
	assert.Less(t, strings.Index(text, `"stage":"success"`), strings.Index(text, "event:outcome"))
}

func TestList(t *testing.T) {
	st := new(MockStore)
	st.On("List", mock.Anything, ownerAddr, 5).Return([]models.DeploymentRecord{{ID: "x", Status: models.OutcomeOK}}, nil)
	st.On("List", mock.Anything, ownerAddr, store.DefaultListLimit).Return([]models.DeploymentRecord{}, nil)

	r := newRouter(new(MockDeployer), st)

	w := doJSON(r, http.MethodGet, "/deployments?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"x"`)

	w = doJSON(r, http.MethodGet, "/deployments", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deployments":[]}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/deployments?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	st.AssertExpectations(t)
}

func TestList_StoreError(t *testing.T) {
	st := new(MockStore)
	st.On("List", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	w := doJSON(newRouter(new(MockDeployer), st), http.MethodGet, "/deployments", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetAccount(t *testing.T) {
	d := new(MockDeployer)
	d.On("Account", mock.Anything).Return(&pipeline.AccountInfo{
		Owner:        ownerAddr,
		SmartAccount: accountAddr,
		Deployed:     false,
		Deposit:      big.NewInt(42),
		CreationGas:  big.NewInt(130_000),
	}, nil).Once()
	d.On("Account", mock.Anything).Return(nil, fmt.Errorf("%w: no owner account", pipeline.ErrOperationNotAvailable)).Once()

	r := newRouter(d, nil)
	w := doJSON(r, http.MethodGet, "/account", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"owner":%q,"smartAccount":%q,"deployed":false,"deposit":"42","creationGas":"130000"}`,
		ownerAddr.Hex(), accountAddr.Hex()), w.Body.String())

	w = doJSON(r, http.MethodGet, "/account", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListTokens(t *testing.T) {
	d := new(MockDeployer)
	d.On("Tokens", mock.Anything).Return([]models.DeployedToken{
		{ID: "Deployed0", Name: "Alpha", Symbol: "ALP", TokenAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
	}, nil).Once()
	d.On("Tokens", mock.Anything).Return(nil, nil).Once()
	d.On("Tokens", mock.Anything).Return(nil, fmt.Errorf("%w: chain 1 is not configured", pipeline.ErrOperationNotAvailable)).Once()
	d.On("Tokens", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	r := newRouter(d, nil)
	w := doJSON(r, http.MethodGet, "/account/tokens", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tokens":[{"id":"Deployed0","name":"Alpha","symbol":"ALP","tokenAddress":"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}]}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/account/tokens", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tokens":[]}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/account/tokens", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(r, http.MethodGet, "/account/tokens", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	d.AssertExpectations(t)
}

func signedOpJSON(t *testing.T, signature []byte) string {
	t.Helper()
	limits, err := userop.PackGasLimits(big.NewInt(1_200_000), big.NewInt(130_000))
	require.NoError(t, err)
	fees, err := userop.PackGasFees(big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	op := userop.UserOperation{
		Sender:             accountAddr,
		Nonce:              big.NewInt(3),
		CallData:           []byte{0xb6, 0x1d, 0x27, 0xf6},
		AccountGasLimits:   limits,
		PreVerificationGas: big.NewInt(171_000),
		GasFees:            fees,
		Signature:          signature,
	}
	body, err := json.Marshal(op.ToModel())
	require.NoError(t, err)
	return string(body)
}

func TestStoreUserOp(t *testing.T) {
	d := new(MockDeployer)
	d.On("Relay", mock.Anything, mock.MatchedBy(func(op userop.UserOperation) bool {
		return op.Sender == accountAddr && op.Nonce.Int64() == 3 && len(op.Signature) == 65
	}), mock.Anything).Return(okResult(), nil)

	w := doJSON(newRouter(d, nil), http.MethodPost, "/userOp", signedOpJSON(t, make([]byte, 65)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	d.AssertExpectations(t)
}

func TestStoreUserOp_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body func(t *testing.T) string
	}{
		{name: "unsigned", body: func(t *testing.T) string { return signedOpJSON(t, nil) }},
		{name: "bad gas limits", body: func(t *testing.T) string {
			return strings.Replace(signedOpJSON(t, make([]byte, 65)), `"accountGasLimits":"0x`, `"accountGasLimits":"0x00`, 1)
		}},
		{name: "missing sender", body: func(*testing.T) string { return `{"nonce":"0x0"}` }},
		{name: "nonce above uint256", body: func(t *testing.T) string {
			return strings.Replace(signedOpJSON(t, make([]byte, 65)), `"nonce":"0x3"`,
				`"nonce":"115792089237316195423570985008687907853269984665640564039457584007913129639943"`, 1)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(MockDeployer)
			w := doJSON(newRouter(d, nil), http.MethodPost, "/userOp", tt.body(t))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			d.AssertNotCalled(t, "Relay", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
