package domain

import "fmt"

// Monetary amounts are int64 minor units (cents) everywhere in the system so
// intermediate arithmetic stays exact. Rounding to two decimals happens only
// here, at display time.

// FormatAmount renders a minor-unit amount as a two-decimal string, e.g.
// 2500 -> "25.00", -499 -> "-4.99".
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
