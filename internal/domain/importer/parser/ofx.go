package parser

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
)

// OFXParser parses OFX/QFX statements via ofxgo. OFX amounts are signed with
// debits negative, so no sign convention applies. The statement's account id
// is surfaced per record through OFXResult.
type OFXParser struct {
	merchant MerchantOptions
}

// OFXRecord pairs a normalized record with the statement account it came from.
type OFXRecord struct {
	Record
	AccountID string
}

// OFXResult is the outcome of parsing one OFX file.
type OFXResult struct {
	Records   []OFXRecord
	RowErrors []RowError
	TotalRows int
}

// NewOFX creates an OFX/QFX parser.
func NewOFX(merchant MerchantOptions) *OFXParser {
	return &OFXParser{merchant: merchant}
}

var (
	ofxSeverityRe = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	ofxOpenTagRe  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes common SGML-era formatting issues before handing the file
// to ofxgo: leading blank lines, mixed-case SEVERITY values and opening tags
// missing their closing bracket.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = ofxSeverityRe.ReplaceAllStringFunc(content, strings.ToUpper)
	content = ofxOpenTagRe.ReplaceAllString(content, "$1>")
	return content
}

// Parse converts OFX data into normalized records grouped with their
// statement account ids.
func (p *OFXParser) Parse(data []byte) (*OFXResult, error) {
	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(data))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	result := &OFXResult{}

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		p.appendTransactions(result, stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		p.appendTransactions(result, stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))
	}

	return result, nil
}

func (p *OFXParser) appendTransactions(result *OFXResult, txns []ofxgo.Transaction, accountID string) {
	for _, ofxTx := range txns {
		result.TotalRows++
		row := result.TotalRows

		cents, err := ratToCents(&ofxTx.TrnAmt.Rat)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: row, Reason: fmt.Sprintf("bad amount: %v", err)})
			continue
		}

		desc := CleanDescription(ofxName(ofxTx))
		if desc == "" {
			result.RowErrors = append(result.RowErrors, RowError{Row: row, Reason: "transaction has no name or memo"})
			continue
		}

		result.Records = append(result.Records, OFXRecord{
			AccountID: accountID,
			Record: Record{
				Date:        ofxTx.DtPosted.Time,
				AmountCents: cents,
				Description: desc,
				Merchant:    DeriveMerchant(desc, p.merchant),
				Reference:   string(ofxTx.FiTID),
				Row:         row,
			},
		})
	}
}

// ofxName prefers PAYEE, then NAME, then MEMO.
func ofxName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}
	if tx.Name != "" {
		return string(tx.Name)
	}
	return string(tx.Memo)
}

// ratToCents converts an exact OFX rational amount to cents.
func ratToCents(r *big.Rat) (int64, error) {
	cents := new(big.Rat).Mul(r, big.NewRat(100, 1))
	if !cents.IsInt() {
		// Sub-cent precision; round half away from zero.
		f, _ := cents.Float64()
		if f >= 0 {
			return int64(f + 0.5), nil
		}
		return int64(f - 0.5), nil
	}
	if !cents.Num().IsInt64() {
		return 0, fmt.Errorf("amount out of range")
	}
	return cents.Num().Int64(), nil
}
