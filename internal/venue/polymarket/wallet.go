package polymarket

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const polygonUSDC = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

const balanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// usdcBalance reads the address's USDC balance from the chain and returns it
// in dollars. USDC carries six decimals.
func usdcBalance(ctx context.Context, rpcURL, address string) (float64, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	parsedABI, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return 0, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return 0, fmt.Errorf("pack ABI: %w", err)
	}

	tokenAddress := common.HexToAddress(polygonUSDC)
	msg := ethereum.CallMsg{To: &tokenAddress, Data: data}

	result, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return 0, fmt.Errorf("call contract: %w", err)
	}

	raw := new(big.Int).SetBytes(result)
	dollars, _ := new(big.Float).Quo(
		new(big.Float).SetInt(raw),
		big.NewFloat(1e6),
	).Float64()
	return dollars, nil
}
