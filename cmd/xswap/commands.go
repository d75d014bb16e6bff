package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/xswap/internal/backend"
	"github.com/klingon-exchange/xswap/internal/swap"
)

func runNewKey(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("newkey", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	pub, err := a.coordinator.NewPubKey()
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(pub.SerializeCompressed()))
	return nil
}

func runPropose(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("propose", flag.ContinueOnError)
	from := fs.String("from", "", "Asset offered, as chain:amount (e.g. btc:0.01)")
	to := fs.String("to", "", "Asset wanted, as chain:amount (e.g. ltc:0.4)")
	counterparty := fs.String("counterparty", "", "Counterparty public key (hex)")
	out := fs.String("out", "", "Write the offer to this file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fromAsset, err := parseAsset(*from)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	toAsset, err := parseAsset(*to)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}
	pub, err := swap.ParsePubKeyHex(*counterparty)
	if err != nil {
		return fmt.Errorf("-counterparty: %w", err)
	}

	offer, err := a.coordinator.Propose(ctx, &swap.Proposal{From: fromAsset, To: toAsset}, pub)
	if err != nil {
		return err
	}
	return writeOffer(*out, offer)
}

func runCounter(_ context.Context, _ *app, args []string) error {
	fs := flag.NewFlagSet("counter", flag.ContinueOnError)
	path := fs.String("offer", "", "Offer file")
	out := fs.String("out", "", "Write the counter-offer to this file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	offer, err := readOffer(*path)
	if err != nil {
		return err
	}
	return writeOffer(*out, offer.CounterOffer())
}

func runFund(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("fund", flag.ContinueOnError)
	path := fs.String("offer", "", "Offer file")
	watch := fs.Bool("watch", true, "Import the contract script into the node wallet")
	if err := fs.Parse(args); err != nil {
		return err
	}

	offer, err := readOffer(*path)
	if err != nil {
		return err
	}
	txid, err := a.coordinator.FundAndBroadcast(ctx, offer, *watch)
	if err != nil {
		return err
	}
	fmt.Println(txid)
	return nil
}

func runWaitFunding(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("wait-funding", flag.ContinueOnError)
	path := fs.String("offer", "", "Offer file")
	minConf := fs.Int("minconf", 1, "Confirmations required")
	if err := fs.Parse(args); err != nil {
		return err
	}

	offer, err := readOffer(*path)
	if err != nil {
		return err
	}
	outpoint, err := a.coordinator.WaitForFunding(ctx, offer, *minConf)
	if err != nil {
		return err
	}
	fmt.Println(outpoint)
	return nil
}

func runWaitDisclosure(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("wait-disclosure", flag.ContinueOnError)
	path := fs.String("offer", "", "Offer file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	offer, err := readOffer(*path)
	if err != nil {
		return err
	}
	if _, err := a.coordinator.WaitForDisclosure(ctx, offer); err != nil {
		return err
	}
	fmt.Println("disclosed")
	return nil
}

func runClaim(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("claim", flag.ContinueOnError)
	path := fs.String("offer", "", "Offer file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	offer, err := readOffer(*path)
	if err != nil {
		return err
	}
	txid, err := a.coordinator.Claim(ctx, offer)
	if err != nil {
		return err
	}
	fmt.Println(txid)
	return nil
}

func runWaitClaim(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("wait-claim", flag.ContinueOnError)
	path := fs.String("offer", "", "Offer file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	offer, err := readOffer(*path)
	if err != nil {
		return err
	}
	outpoint, err := a.coordinator.WaitForClaimConfirmation(ctx, offer)
	if err != nil {
		return err
	}
	fmt.Println(outpoint)
	return nil
}

func runStatus(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	hashHex := fs.String("hash", "", "Show one swap by hash (hex)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *hashHex != "" {
		hash, err := swap.ParseHashHex(*hashHex)
		if err != nil {
			return err
		}
		rec, err := a.coordinator.State(hash)
		if err != nil {
			return err
		}
		fmt.Printf("%x  %-9s  updated %s\n%s\n", rec.Hash, rec.State, rec.UpdatedAt.Format("2006-01-02 15:04:05"), rec.Offer)
		return nil
	}

	records, err := a.coordinator.ListSwaps()
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("%x  %-9s  updated %s\n", rec.Hash, rec.State, rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// parseAsset parses chain:amount with the amount in whole coins.
func parseAsset(s string) (swap.ChainAsset, error) {
	name, amount, ok := strings.Cut(s, ":")
	if !ok {
		return swap.ChainAsset{}, fmt.Errorf("expected chain:amount, got %q", s)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return swap.ChainAsset{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	asset := swap.ChainAsset{Chain: strings.TrimSpace(name), Amount: backend.ToSatoshis(value)}
	return asset, asset.Validate()
}

func readOffer(path string) (*swap.Offer, error) {
	if path == "" {
		return nil, errors.New("-offer is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read offer: %w", err)
	}
	var offer swap.Offer
	if err := json.Unmarshal(data, &offer); err != nil {
		return nil, err
	}
	if err := offer.Validate(); err != nil {
		return nil, err
	}
	return &offer, nil
}

func writeOffer(path string, offer *swap.Offer) error {
	data, err := json.MarshalIndent(offer, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write offer: %w", err)
	}
	return nil
}
