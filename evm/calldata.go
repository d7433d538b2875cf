package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

const erc721JSON = `[
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable",
	 "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable",
	 "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],
	 "outputs":[]}
]`

const erc1155JSON = `[
	{"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable",
	 "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"id","type":"uint256"},
	           {"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],
	 "outputs":[]}
]`

var (
	erc20ABI   = mustABI(erc20JSON)
	erc721ABI  = mustABI(erc721JSON)
	erc1155ABI = mustABI(erc1155JSON)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("evm: parse ABI: %v", err))
	}
	return parsed
}

// ERC20TransferData encodes transfer(to, amount).
func ERC20TransferData(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, amount)
}

// ERC721TransferData encodes transferFrom or, when safe is set,
// safeTransferFrom(from, to, tokenId).
func ERC721TransferData(from, to common.Address, tokenID *big.Int, safe bool) ([]byte, error) {
	method := "transferFrom"
	if safe {
		method = "safeTransferFrom"
	}
	return erc721ABI.Pack(method, from, to, tokenID)
}

// ERC1155TransferData encodes safeTransferFrom(from, to, id, amount, data).
func ERC1155TransferData(from, to common.Address, id, amount *big.Int, data []byte) ([]byte, error) {
	if data == nil {
		data = []byte{}
	}
	return erc1155ABI.Pack("safeTransferFrom", from, to, id, amount, data)
}
