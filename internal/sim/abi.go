package sim

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Flash-loan arbitrage contract ABI. Parameter order and encoding are part of
// the contract with the deployed artifact; keep in sync with it.
const executorABIJSON = `[
	{
		"inputs": [
			{"internalType": "address", "name": "asset", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "address", "name": "sourceDex", "type": "address"},
			{"internalType": "address", "name": "targetDex", "type": "address"},
			{"internalType": "uint256", "name": "minProfit", "type": "uint256"}
		],
		"name": "executeCrossDexArbitrage",
		"outputs": [{"internalType": "uint256", "name": "profit", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "asset", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "uint256", "name": "minProfit", "type": "uint256"}
		],
		"name": "executeMultiHopArbitrage",
		"outputs": [{"internalType": "uint256", "name": "profit", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "asset", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "uint256", "name": "minProfit", "type": "uint256"}
		],
		"name": "executeTriangularArbitrage",
		"outputs": [{"internalType": "uint256", "name": "profit", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

func mustParseExecutorABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(executorABIJSON))
	if err != nil {
		panic("executor abi: " + err.Error())
	}
	return parsed
}

var executorABI = mustParseExecutorABI()
