package fiscal

import (
	"github.com/rbutdayev/xpos-sub008/internal/models"

	"github.com/shopspring/decimal"
)

// fiscalLine is a sale line after gift card amounts were folded into discounts
type fiscalLine struct {
	item     models.SaleItem
	discount decimal.Decimal
	sum      decimal.Decimal
}

// paymentBuckets holds tender totals as the fiscal authority sees them
type paymentBuckets struct {
	cash     decimal.Decimal
	card     decimal.Decimal
	giftCard decimal.Decimal
	// tenders lists non gift card payments in sale order
	tenders []models.SalePayment
}

// bucketPayments sums tenders into cash and card. Gift cards are kept apart
// because they become line discounts. A credit sale without payments is
// reported as paid in cash.
func bucketPayments(sale *models.Sale) paymentBuckets {
	b := paymentBuckets{cash: decimal.Zero, card: decimal.Zero, giftCard: decimal.Zero}

	for _, p := range sale.Payments {
		switch p.Method {
		case models.PaymentMethodGiftCard:
			b.giftCard = b.giftCard.Add(p.Amount)
			continue
		case models.PaymentMethodCash:
			b.cash = b.cash.Add(p.Amount)
		default:
			b.card = b.card.Add(p.Amount)
		}
		b.tenders = append(b.tenders, p)
	}

	if sale.PaymentStatus == models.PaymentStatusCredit && len(sale.Payments) == 0 {
		b.cash = sale.Total
		b.tenders = []models.SalePayment{{Method: models.PaymentMethodCash, Amount: sale.Total}}
	}

	return b
}

// applyGiftCardDiscount spreads the gift card amount over the lines in
// proportion to each line's total. The last non-empty line takes the rounding
// remainder. The discount never exceeds the sum of the lines.
func applyGiftCardDiscount(items []models.SaleItem, gift decimal.Decimal) []fiscalLine {
	lines := make([]fiscalLine, len(items))
	base := decimal.Zero
	last := -1

	for i, item := range items {
		total := item.LineTotal()
		if total.IsNegative() {
			total = decimal.Zero
		}
		lines[i] = fiscalLine{item: item, discount: item.Discount, sum: total}
		base = base.Add(total)
		if total.IsPositive() {
			last = i
		}
	}

	if !gift.IsPositive() || last < 0 {
		return lines
	}
	if gift.GreaterThan(base) {
		gift = base
	}

	remaining := gift
	for i := range lines {
		if !lines[i].sum.IsPositive() {
			continue
		}

		share := remaining
		if i != last {
			share = gift.Mul(lines[i].sum).Div(base).Round(2)
		}
		if share.GreaterThan(lines[i].sum) {
			share = lines[i].sum
		}
		if share.GreaterThan(remaining) {
			share = remaining
		}

		lines[i].discount = lines[i].discount.Add(share)
		lines[i].sum = lines[i].sum.Sub(share)
		remaining = remaining.Sub(share)
	}

	return lines
}

// fiscalTotal is the sum of all line sums after discounts
func fiscalTotal(lines []fiscalLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.sum)
	}
	return total
}
