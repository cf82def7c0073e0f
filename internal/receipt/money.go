package receipt

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Amounts are printed the way the shop reads them: whole rupiah, dot grouping.
var money = message.NewPrinter(language.Indonesian)

// FormatMoney rounds v to an integer and groups thousands ("10.000")
func FormatMoney(v decimal.Decimal) string {
	return money.Sprintf("%d", v.Round(0).IntPart())
}
