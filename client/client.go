// Package client drives a deployed price logger program through a ledger:
// it provisions logger accounts, submits signed price updates and reads
// prices back.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/unkn0wn-root/pricelogger/codec"
	"github.com/unkn0wn-root/pricelogger/instruction"
	"github.com/unkn0wn-root/pricelogger/ledger"
	"github.com/unkn0wn-root/pricelogger/state"
)

type Client struct {
	led       *ledger.Ledger
	programID solana.PublicKey
	report    codec.Protobuf[*wrapperspb.UInt64Value]
}

func New(led *ledger.Ledger, programID solana.PublicKey) *Client {
	return &Client{
		led:       led,
		programID: programID,
		report:    codec.NewProtobuf(func() *wrapperspb.UInt64Value { return &wrapperspb.UInt64Value{} }),
	}
}

// CheckProgram fails unless the program account exists and is executable.
func (c *Client) CheckProgram(ctx context.Context) error {
	rec, err := c.led.Account(ctx, c.programID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return fmt.Errorf("client: program %s needs to be deployed: %w", c.programID, ledger.ErrProgramNotFound)
	}
	if err != nil {
		return err
	}
	if !rec.Executable {
		return fmt.Errorf("client: program %s: %w", c.programID, ledger.ErrNotExecutable)
	}
	return nil
}

// EstablishLogger returns the logger account derived from payer and seed,
// creating it with state.Len bytes owned by the program if it is missing.
//
// The seeded address has no private key, so it can never sign an update;
// it suits read-only consumers that mirror another logger's layout.
func (c *Client) EstablishLogger(ctx context.Context, payer solana.PublicKey, seed string) (solana.PublicKey, error) {
	key, err := solana.CreateWithSeed(payer, seed, c.programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("client: derive logger address: %w", err)
	}
	if err := c.ensureLogger(ctx, key); err != nil {
		return solana.PublicKey{}, err
	}
	return key, nil
}

// CreateLogger provisions a logger account addressed by logger's public
// key. That key later signs UpdatePrice.
func (c *Client) CreateLogger(ctx context.Context, logger solana.PrivateKey) error {
	return c.ensureLogger(ctx, logger.PublicKey())
}

func (c *Client) ensureLogger(ctx context.Context, key solana.PublicKey) error {
	rec, err := c.led.Account(ctx, key)
	switch {
	case err == nil:
		if !rec.Owner.Equals(c.programID) {
			return fmt.Errorf("client: logger %s is owned by %s, not the program", key, rec.Owner)
		}
		return nil
	case errors.Is(err, ledger.ErrAccountNotFound):
		err = c.led.CreateAccount(ctx, key, c.programID, state.Len)
		if errors.Is(err, ledger.ErrAccountExists) {
			return nil // created concurrently
		}
		return err
	default:
		return err
	}
}

// UpdatePrice sends a signed UpdatePrice instruction for the logger account.
func (c *Client) UpdatePrice(ctx context.Context, logger solana.PrivateKey, price uint64) error {
	tx := ledger.NewTransaction(ledger.Instruction{
		ProgramID: c.programID,
		Accounts: []solana.AccountMeta{
			{PublicKey: logger.PublicKey(), IsSigner: true, IsWritable: true},
		},
		Data: instruction.Pack(instruction.UpdatePrice{TargetPrice: price}),
	})
	if err := tx.Sign(logger); err != nil {
		return fmt.Errorf("client: sign: %w", err)
	}
	return c.led.Execute(ctx, tx)
}

// ReportPrice reads the price currently stored in the logger account.
func (c *Client) ReportPrice(ctx context.Context, key solana.PublicKey) (uint64, error) {
	rec, err := c.led.Account(ctx, key)
	if err != nil {
		return 0, err
	}
	st, err := state.Unpack(rec.Data)
	if err != nil {
		return 0, fmt.Errorf("client: logger %s: %w", key, err)
	}
	return st.Price, nil
}

// ReportPriceProto returns the stored price as an encoded
// google.protobuf.UInt64Value for consumers outside the ledger.
func (c *Client) ReportPriceProto(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	price, err := c.ReportPrice(ctx, key)
	if err != nil {
		return nil, err
	}
	return c.report.Encode(wrapperspb.UInt64(price))
}

// DecodePriceReport parses a payload produced by ReportPriceProto.
func (c *Client) DecodePriceReport(b []byte) (uint64, error) {
	v, err := c.report.Decode(b)
	if err != nil {
		return 0, err
	}
	return v.GetValue(), nil
}
