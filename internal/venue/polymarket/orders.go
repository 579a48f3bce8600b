package polymarket

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/openpredict/crossarb/pkg/types"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// orderClient signs and submits CLOB orders. Orders are EIP-712 signed with
// the trader's key; requests carry HMAC L2 auth headers derived from the API
// credentials.
type orderClient struct {
	clobURL       string
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string // EOA address (signer)
	proxyAddress  string // proxy address (maker/funder), optional
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	httpClient    *http.Client
	logger        *zap.Logger
}

type orderClientConfig struct {
	ClobURL      string
	APIKey       string
	Secret       string
	Passphrase   string
	PrivateKey   string
	ProxyAddress string
	Logger       *zap.Logger
}

func newOrderClient(cfg *orderClientConfig) (*orderClient, error) {
	privateKey, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, _ := privateKey.Public().(*ecdsa.PublicKey)
	address := ethcrypto.PubkeyToAddress(*publicKey).Hex()

	signatureType := model.EOA
	if cfg.ProxyAddress != "" {
		signatureType = model.POLY_GNOSIS_SAFE
	}

	chainID := big.NewInt(137) // Polygon mainnet
	orderBuilder := builder.NewExchangeOrderBuilderImpl(chainID, nil)

	return &orderClient{
		clobURL:       cfg.ClobURL,
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: signatureType,
		orderBuilder:  orderBuilder,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        cfg.Logger,
	}, nil
}

// funderAddress is the address holding the collateral: the proxy when
// configured, otherwise the EOA itself.
func (c *orderClient) funderAddress() string {
	if c.proxyAddress != "" {
		return c.proxyAddress
	}
	return c.address
}

type signedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type orderResult struct {
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	ErrorMsg string `json:"errorMsg"`
}

// place builds, signs and submits a buy order for size contracts of tokenID
// at price dollars per contract.
func (c *orderClient) place(ctx context.Context, tokenID string, size int64, price float64, orderType string) (*orderResult, error) {
	usd := float64(size) * price

	orderData := &model.OrderData{
		Maker:         c.funderAddress(),
		Taker:         zeroAddress,
		TokenId:       tokenID,
		MakerAmount:   usdToRawAmount(usd),
		TakerAmount:   usdToRawAmount(float64(size)),
		Side:          model.BUY,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        c.address,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}

	signedOrder, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, model.CTFExchange)
	if err != nil {
		return nil, fmt.Errorf("build signed order: %w", err)
	}

	sideStr := "BUY"
	if signedOrder.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	jsonOrder := signedOrderJSON{
		Salt:          signedOrder.Salt.Int64(),
		Maker:         signedOrder.Maker.Hex(),
		Signer:        signedOrder.Signer.Hex(),
		Taker:         signedOrder.Taker.Hex(),
		TokenID:       signedOrder.TokenId.String(),
		MakerAmount:   signedOrder.MakerAmount.String(),
		TakerAmount:   signedOrder.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    signedOrder.Expiration.String(),
		Nonce:         signedOrder.Nonce.String(),
		FeeRateBps:    signedOrder.FeeRateBps.String(),
		SignatureType: int(signedOrder.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(signedOrder.Signature),
	}

	// "owner" is the API key, not the maker address.
	reqBody := map[string]interface{}{
		"order":     jsonOrder,
		"owner":     c.apiKey,
		"orderType": orderType,
	}

	var result orderResult
	err = c.do(ctx, http.MethodPost, "/order", reqBody, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *orderClient) cancel(ctx context.Context, venueOrderID string) error {
	reqBody := map[string]string{"orderID": venueOrderID}
	return c.do(ctx, http.MethodDelete, "/order", reqBody, nil)
}

type clobTrade struct {
	ID        string `json:"id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	MatchTime string `json:"match_time"`
}

type openOrder struct {
	ID              string      `json:"id"`
	Status          string      `json:"status"`
	OriginalSize    string      `json:"original_size"`
	SizeMatched     string      `json:"size_matched"`
	AssociateTrades []clobTrade `json:"associate_trades"`
}

func (c *orderClient) getOrder(ctx context.Context, venueOrderID string) (*openOrder, error) {
	var order openOrder
	err := c.do(ctx, http.MethodGet, "/data/order/"+venueOrderID, nil, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// do sends an L2-authenticated request: the HMAC covers timestamp + method +
// path + body, with URL-safe base64 on both the secret and the signature.
func (c *orderClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rawBody []byte
	if body != nil {
		var err error
		rawBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signaturePayload := timestamp + method + path + string(rawBody)

	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return fmt.Errorf("decode secret: %w", err)
	}
	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(signaturePayload))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, method, c.clobURL+path, bytes.NewReader(rawBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.address) // EOA, not the proxy

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.Transient(types.VenuePolymarket, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transient(types.VenuePolymarket, "read response: %v", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return types.Transient(types.VenuePolymarket, "%s %s: status %d", method, path, resp.StatusCode)
	default:
		return types.Rejected(types.VenuePolymarket, "",
			"%s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func usdToRawAmount(usd float64) string {
	return fmt.Sprintf("%d", int64(usd*1000000))
}
