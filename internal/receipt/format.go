package receipt

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the ledger a transaction belongs to
type Kind string

const (
	KindSale     Kind = "sale"
	KindPurchase Kind = "purchase"
	KindExpense  Kind = "expense"
)

var (
	ErrMissingID    = errors.New("transaction has no id")
	ErrMissingStore = errors.New("transaction has no store name")
	ErrUnknownKind  = errors.New("unknown transaction kind")
)

// Transaction is a completed sale, purchase or expense as stored in the ledger
type Transaction struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind,omitempty"`
	StoreName string          `json:"storeName"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []LineItem      `json:"items"`
	Total     decimal.Decimal `json:"jumlah_total"`
	Payment   *Payment        `json:"payment,omitempty"`
}

// LineItem is one product line of a transaction
type LineItem struct {
	Name      string          `json:"nama"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"harga_jual"`
	LineTotal decimal.Decimal `json:"jumlah_total"`
}

// Payment holds the cash tendered for a sale
type Payment struct {
	CashReceived decimal.Decimal `json:"cashReceived"`
	Change       decimal.Decimal `json:"change"`
}

// Validate reports records a cashier should not be able to print. Format itself
// accepts anything.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(t.StoreName) == "" {
		return ErrMissingStore
	}
	switch t.Kind {
	case "", KindSale, KindPurchase, KindExpense:
	default:
		return ErrUnknownKind
	}
	return nil
}

// Item column widths. The item line is the same on every paper size.
const (
	qtyWidth   = 2
	nameWidth  = 14
	priceWidth = 6
	totalWidth = 7
	idLength   = 6

	// DateLayout is how the header prints the transaction time
	DateLayout = "02/01/2006 15:04"
)

// Format turns a transaction into the command list for a receipt. Rows and
// lines take the paper width when they are rendered.
func Format(t Transaction) []Command {
	cmds := []Command{
		Row{Left: t.StoreName, Right: t.CreatedAt.Format(DateLayout)},
		Line{Fill: DefaultFill},
		Text{Content: ShortID(t.ID), Align: AlignLeft},
		Line{Fill: DefaultFill},
	}

	for _, it := range t.Items {
		cmds = append(cmds, Text{Content: ItemLine(it), Align: AlignLeft})
	}

	cmds = append(cmds,
		Line{Fill: DefaultFill},
		Row{Left: "TOTAL", Right: FormatMoney(t.Total)},
	)

	if t.Payment != nil {
		cmds = append(cmds,
			Row{Left: "Tunai", Right: FormatMoney(t.Payment.CashReceived)},
			Row{Left: "Kembali", Right: formatChange(t.Payment.Change)},
		)
	}

	return append(cmds, Line{Fill: DefaultFill}, Feed{Lines: 3})
}

// ShortID is the transaction number printed on the receipt
func ShortID(id string) string {
	r := []rune(id)
	if len(r) > idLength {
		r = r[:idLength]
	}
	return strings.ToUpper(string(r))
}

// ItemLine renders qty, name, unit price and line total as fixed columns.
// Amounts wider than their column are printed whole and push the line past
// the paper width.
func ItemLine(it LineItem) string {
	return strings.Join([]string{
		PadLeft(strconv.Itoa(it.Qty), qtyWidth),
		Ellipsize(it.Name, nameWidth),
		PadLeft(FormatMoney(it.UnitPrice), priceWidth),
		PadLeft(FormatMoney(it.LineTotal), totalWidth),
	}, " ")
}

// A negative change means the payment check was skipped upstream; print the raw
// value so it stands out.
func formatChange(v decimal.Decimal) string {
	if v.IsNegative() {
		return v.String()
	}
	return FormatMoney(v)
}
