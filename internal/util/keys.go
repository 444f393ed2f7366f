package util

import "github.com/gagliardetto/solana-go"

// AccountKey returns the store key for an account: "acct:<ns>:<base58>".
func AccountKey(ns string, key solana.PublicKey) string {
	return "acct:" + ns + ":" + key.String()
}
