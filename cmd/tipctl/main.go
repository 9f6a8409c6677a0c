package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
	"github.com/plebbit/plebbit-tipping-v1/sdk/client"
)

const (
	defaultRPC = "http://127.0.0.1:8545/rpc"
	tokenEnv   = "TIPCTL_TOKEN"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: tipctl <command> [flags]

Commands:
  cid       Convert a CID string into a ledger comment identifier
  keys      Derive the recipient and sender aggregation keys
  total     Query the recipient (or sender) total for a comment
  tips      List tips recorded for a comment
  tip       Record a tip as the token's subject
  params    Show the fee and minimum tip parameters
  set-fee   Update the fee percent (moderator)
  set-min   Update the minimum tip amount (moderator)
  grant     Grant the moderator role (admin)
  revoke    Revoke the moderator role (admin)
  balance   Show an account balance
`)
}

type commonFlags struct {
	rpc       *string
	token     *string
	timeout   *time.Duration
	cacheSize *int
}

func bindCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		rpc:       fs.String("rpc", defaultRPC, "Node JSON-RPC endpoint"),
		token:     fs.String("token", os.Getenv(tokenEnv), "Bearer token (defaults to $"+tokenEnv+")"),
		timeout:   fs.Duration("timeout", 15*time.Second, "Request timeout"),
		cacheSize: fs.Int("cache-size", 128, "Number of totals cached per invocation"),
	}
}

func (c commonFlags) client() (*client.Client, context.Context, context.CancelFunc, error) {
	cl, err := client.New(*c.rpc,
		client.WithToken(*c.token),
		client.WithCacheSize(*c.cacheSize),
		client.WithFetchTimeout(*c.timeout),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *c.timeout)
	return cl, ctx, cancel, nil
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "cid":
		err = runCID(args)
	case "keys":
		err = runKeys(args)
	case "total":
		err = runTotal(args)
	case "tips":
		err = runTips(args)
	case "tip":
		err = runTip(args)
	case "params":
		err = runParams(args)
	case "set-fee":
		err = runSetFee(args)
	case "set-min":
		err = runSetMin(args)
	case "grant", "revoke":
		err = runRole(cmd, args)
	case "balance":
		err = runBalance(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tipctl %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resolveCID accepts either a 32 byte hex identifier or a CID string.
func resolveCID(value string) (common.Hash, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "0x") && len(trimmed) == 66 {
		return common.HexToHash(trimmed), nil
	}
	return client.CommentCID(trimmed)
}

func parseAddress(field, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid %s %q", field, value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAddressList(field, value string) ([]common.Address, error) {
	var out []common.Address
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		addr, err := parseAddress(field, part)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one %s is required", field)
	}
	return out, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", field, value)
	}
	return amount, nil
}

func runCID(args []string) error {
	fs := flag.NewFlagSet("cid", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one CID argument")
	}
	id, err := client.CommentCID(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Println(id.Hex())
	return nil
}

func runKeys(args []string) error {
	fs := flag.NewFlagSet("keys", flag.ExitOnError)
	comment := fs.String("comment", "", "Recipient comment CID or 32 byte hex identifier")
	fee := fs.String("fee-recipient", "", "Fee recipient address")
	senderComment := fs.String("sender-comment", "", "Sender comment CID (optional)")
	sender := fs.String("sender", "", "Sender address (optional)")
	_ = fs.Parse(args)

	recipientCID, err := resolveCID(*comment)
	if err != nil {
		return err
	}
	feeRecipient, err := parseAddress("fee recipient", *fee)
	if err != nil {
		return err
	}
	out := map[string]string{
		"recipientKey": tipping.DeriveRecipientKey(recipientCID, feeRecipient).Hex(),
	}
	if strings.TrimSpace(*sender) != "" {
		senderAddr, err := parseAddress("sender", *sender)
		if err != nil {
			return err
		}
		senderCID, err := resolveCID(*senderComment)
		if err != nil {
			return err
		}
		out["senderKey"] = tipping.DeriveSenderKey(senderCID, senderAddr, recipientCID, feeRecipient).Hex()
	}
	return printJSON(out)
}

func runTotal(args []string) error {
	fs := flag.NewFlagSet("total", flag.ExitOnError)
	conn := bindCommon(fs)
	comment := fs.String("comment", "", "Recipient comment CID or 32 byte hex identifier")
	fees := fs.String("fee-recipients", "", "Comma separated fee recipient addresses")
	sender := fs.String("sender", "", "Restrict the total to this sender")
	senderComment := fs.String("sender-comment", "", "Sender comment CID (with -sender)")
	_ = fs.Parse(args)

	recipientCID, err := resolveCID(*comment)
	if err != nil {
		return err
	}
	feeRecipients, err := parseAddressList("fee recipient", *fees)
	if err != nil {
		return err
	}
	cl, ctx, cancel, err := conn.client()
	if err != nil {
		return err
	}
	defer cancel()

	var total *big.Int
	if strings.TrimSpace(*sender) != "" {
		senderAddr, err := parseAddress("sender", *sender)
		if err != nil {
			return err
		}
		senderCID, err := resolveCID(*senderComment)
		if err != nil {
			return err
		}
		total, err = cl.SenderTotal(ctx, senderCID, senderAddr, recipientCID, feeRecipients)
		if err != nil {
			return err
		}
	} else {
		total, err = cl.RecipientTotal(ctx, recipientCID, feeRecipients)
		if err != nil {
			return err
		}
	}
	fmt.Println(total.String())
	return nil
}

func runTips(args []string) error {
	fs := flag.NewFlagSet("tips", flag.ExitOnError)
	conn := bindCommon(fs)
	comment := fs.String("comment", "", "Recipient comment CID or 32 byte hex identifier")
	fees := fs.String("fee-recipients", "", "Comma separated fee recipient addresses")
	offset := fs.Uint64("offset", 0, "Number of tips to skip")
	limit := fs.Uint64("limit", 20, "Maximum number of tips to return")
	_ = fs.Parse(args)

	recipientCID, err := resolveCID(*comment)
	if err != nil {
		return err
	}
	feeRecipients, err := parseAddressList("fee recipient", *fees)
	if err != nil {
		return err
	}
	cl, ctx, cancel, err := conn.client()
	if err != nil {
		return err
	}
	defer cancel()

	count, err := cl.TipsCount(ctx, recipientCID, feeRecipients)
	if err != nil {
		return err
	}
	tips, err := cl.Tips(ctx, recipientCID, feeRecipients, *offset, *limit)
	if err != nil {
		return err
	}
	type tipView struct {
		Sender           string `json:"sender"`
		Amount           string `json:"amount"`
		FeeRecipient     string `json:"feeRecipient"`
		SenderCommentCID string `json:"senderCommentCid"`
	}
	views := make([]tipView, 0, len(tips))
	for _, tip := range tips {
		views = append(views, tipView{
			Sender:           tip.Sender.Hex(),
			Amount:           tip.Amount.String(),
			FeeRecipient:     tip.FeeRecipient.Hex(),
			SenderCommentCID: tip.SenderCommentCID.Hex(),
		})
	}
	return printJSON(map[string]interface{}{"count": count, "tips": views})
}

func runTip(args []string) error {
	fs := flag.NewFlagSet("tip", flag.ExitOnError)
	conn := bindCommon(fs)
	recipient := fs.String("recipient", "", "Recipient address")
	amount := fs.String("amount", "", "Tip amount in wei")
	value := fs.String("value", "", "Attached value in wei (defaults to -amount)")
	fee := fs.String("fee-recipient", "", "Fee recipient address")
	comment := fs.String("comment", "", "Recipient comment CID or 32 byte hex identifier")
	senderComment := fs.String("sender-comment", "", "Sender comment CID (optional)")
	_ = fs.Parse(args)

	tip := client.Tip{}
	var err error
	if tip.Recipient, err = parseAddress("recipient", *recipient); err != nil {
		return err
	}
	if tip.FeeRecipient, err = parseAddress("fee recipient", *fee); err != nil {
		return err
	}
	if tip.Amount, err = parseAmount("amount", *amount); err != nil {
		return err
	}
	if strings.TrimSpace(*value) != "" {
		if tip.Value, err = parseAmount("value", *value); err != nil {
			return err
		}
	}
	if tip.RecipientCommentCID, err = resolveCID(*comment); err != nil {
		return err
	}
	if tip.SenderCommentCID, err = resolveCID(*senderComment); err != nil {
		return err
	}
	cl, ctx, cancel, err := conn.client()
	if err != nil {
		return err
	}
	defer cancel()
	receipt, err := cl.RecordTip(ctx, tip)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"sender":       receipt.Sender.Hex(),
		"recipient":    receipt.Recipient.Hex(),
		"amount":       receipt.Amount.String(),
		"fee":          receipt.Fee.String(),
		"netPayment":   receipt.NetPayment.String(),
		"recipientKey": receipt.RecipientKey.Hex(),
		"senderKey":    receipt.SenderKey.Hex(),
	})
}

func printParams(params *tipping.Params) error {
	return printJSON(map[string]interface{}{
		"minimumTipAmount": params.MinimumTipAmount.String(),
		"feePercent":       params.FeePercent,
	})
}

func runParams(args []string) error {
	fs := flag.NewFlagSet("params", flag.ExitOnError)
	conn := bindCommon(fs)
	_ = fs.Parse(args)
	cl, ctx, cancel, err := conn.client()
	if err != nil {
		return err
	}
	defer cancel()
	params, err := cl.Params(ctx)
	if err != nil {
		return err
	}
	return printParams(params)
}

func runSetFee(args []string) error {
	fs := flag.NewFlagSet("set-fee", flag.ExitOnError)
	conn := bindCommon(fs)
	percent := fs.Uint64("percent", 0, "New fee percent")
	_ = fs.Parse(args)
	cl, ctx, cancel, err := conn.client()
	if err != nil {
		return err
	}
	defer cancel()
	params, err := cl.SetFeePercent(ctx, *percent)
	if err != nil {
		return err
	}
	return printParams(params)
}

func runSetMin(args []string) error {
	fs := flag.NewFlagSet("set-min", flag.ExitOnError)
	conn := bindCommon(fs)
	amount := fs.String("amount", "", "New minimum tip amount in wei")
	_ = fs.Parse(args)
	value, err := parseAmount("amount", *amount)
	if err != nil {
		return err
	}
	cl, ctx, cancel, err := conn.client()
	if err != nil {
		return err
	}
	defer cancel()
	params, err := cl.SetMinimumTipAmount(ctx, value)
	if err != nil {
		return err
	}
	return printParams(params)
}

func runRole(cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	conn := bindCommon(fs)
	account := fs.String("account", "", "Account address")
	_ = fs.Parse(args)
	addr, err := parseAddress("account", *account)
	if err != nil {
		return err
	}
	cl, ctx, cancel, err := conn.client()
	if err != nil {
		return err
	}
	defer cancel()
	if cmd == "grant" {
		err = cl.GrantModerator(ctx, addr)
	} else {
		err = cl.RevokeModerator(ctx, addr)
	}
	if err != nil {
		return err
	}
	hasRole, err := cl.HasRole(ctx, tipping.RoleModerator, addr)
	if err != nil {
		return err
	}
	members, err := cl.RoleMembers(ctx, tipping.RoleModerator)
	if err != nil {
		return err
	}
	moderators := make([]string, len(members))
	for i, member := range members {
		moderators[i] = member.Hex()
	}
	return printJSON(map[string]interface{}{"account": addr.Hex(), "moderator": hasRole, "moderators": moderators})
}

func runBalance(args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	conn := bindCommon(fs)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one address argument")
	}
	addr, err := parseAddress("address", fs.Arg(0))
	if err != nil {
		return err
	}
	cl, ctx, cancel, err := conn.client()
	if err != nil {
		return err
	}
	defer cancel()
	bal, err := cl.Balance(ctx, addr)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"address": bal.Address.Hex(),
		"balance": bal.Balance.String(),
		"payable": bal.Payable,
	})
}
