// Package ofx reads OFX/QFX bank and credit card statements into import rows.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"regexp"
	"strings"

	"github.com/Veraticus/fintrack/internal/model"
	"github.com/aclindsa/ofxgo"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tag alone on a line with its closing bracket missing.
	unclosedTagRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
	"UPI/",
}

var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// Options controls which statement entries become rows.
type Options struct {
	// DebitsOnly drops credits such as refunds and salary.
	DebitsOnly bool
}

// Parser converts OFX statements to import rows.
type Parser struct {
	opts Options
}

// NewParser creates a new OFX parser.
func NewParser(opts Options) *Parser {
	return &Parser{opts: opts}
}

// preprocessOFX fixes common formatting issues in bank exports.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTagRegex.ReplaceAllString(content, "$1>")
}

// ParseFile parses an OFX/QFX statement. Amounts are absolute values and
// dates are the posting dates. Line numbers count entries from one.
func (p *Parser) ParseFile(ctx context.Context, r io.Reader) ([]model.RawTransaction, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var lists []*ofxgo.TransactionList
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			lists = append(lists, stmt.BankTranList)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			lists = append(lists, stmt.BankTranList)
		}
	}

	var rows []model.RawTransaction
	entry, credits := 0, 0
	for _, list := range lists {
		if list == nil {
			continue
		}
		for _, tx := range list.Transactions {
			entry++
			if tx.TrnAmt.Sign() >= 0 {
				credits++
				if p.opts.DebitsOnly {
					continue
				}
			}
			rows = append(rows, p.convert(tx, entry))
		}
	}

	slog.Info("Parsed OFX file",
		"statements", len(lists),
		"rows", len(rows),
		"credits", credits)

	return rows, nil
}

func (p *Parser) convert(tx ofxgo.Transaction, line int) model.RawTransaction {
	amount := new(big.Rat).Abs(&tx.TrnAmt.Rat)
	return model.RawTransaction{
		Line:        line,
		Amount:      amount.FloatString(2),
		Description: payeeName(tx),
		Date:        tx.DtPosted.Format(model.DateLayout),
	}
}

// payeeName picks the cleanest merchant name available.
func payeeName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && genericNames[strings.ToUpper(name)] {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " posting dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}
