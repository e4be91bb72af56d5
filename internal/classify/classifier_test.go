package classify

import (
	"testing"

	"github.com/arkodell/cpmi/internal/models"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		name  string
		title string
		slug  string
		want  string
	}{
		{"bitcoin title", "Will Bitcoin reach $100k?", "", "bitcoin-price"},
		{"btc ticker", "BTC above $95,000 on Friday?", "", "bitcoin-price"},
		{"ethereum title", "Ethereum up or down today?", "", "ethereum-price"},
		{"eth ticker with boundary", "Will ETH hit $5k?", "", "ethereum-price"},
		{"whether does not match eth", "Whether it rains tomorrow", "", Uncategorized},
		{"solana", "Solana price between $150 and $200?", "", "solana-price"},
		{"regulation beats asset", "Will the SEC approve a Bitcoin ETF?", "", "regulation"},
		{"adoption", "Will another country adopt crypto as legal tender?", "", "adoption"},
		{"slug fallback", "100k by March?", "bitcoin-100k-march", "bitcoin-price"},
		{"unrelated", "Will the Lakers win the finals?", "", Uncategorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Category(tt.title, tt.slug, "")
			if got != tt.want {
				t.Errorf("Category(%q, %q) = %q, want %q", tt.title, tt.slug, got, tt.want)
			}
		})
	}
}

// Classification must be a pure function: identical titles always
// yield identical results.
func TestCategoryIdempotent(t *testing.T) {
	title := "Will Bitcoin reach $100k?"
	first := Category(title, "", "")
	for i := 0; i < 10; i++ {
		if got := Category(title, "", ""); got != first {
			t.Fatalf("Category not deterministic: got %q then %q", first, got)
		}
	}
	firstType := TypeOf(title)
	for i := 0; i < 10; i++ {
		if got := TypeOf(title); got != firstType {
			t.Fatalf("TypeOf not deterministic: got %q then %q", firstType, got)
		}
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		title string
		want  models.MarketType
	}{
		{"BTC between $90,000 and $110,000", models.TypeRange},
		{"Will Bitcoin stay between $60k and $70k by June?", models.TypeRange},
		{"Will Bitcoin reach $100k?", models.TypePriceTarget},
		{"ETH above $5,000 this year?", models.TypePriceTarget},
		{"Will Solana dip to $100?", models.TypePriceTarget},
		{"Bitcoin up or down today?", models.TypeDirectional},
		{"Analysts bullish on crypto this quarter", models.TypeDirectional},
		{"Will the halving happen before April?", models.TypeBinary},
		{"Will Congress pass the stablecoin bill?", models.TypeBinary},
		{"Will X win the election?", models.TypeBinary},
		{"Crypto market mood this week", models.TypeSentiment},
		{"", models.TypeSentiment},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := TypeOf(tt.title); got != tt.want {
				t.Errorf("TypeOf(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestTypeOfPriority(t *testing.T) {
	// A title matching both range and price-target cues must classify
	// as range; first rule wins.
	title := "Will Bitcoin stay between $90k and $110k or reach $120k?"
	if got := TypeOf(title); got != models.TypeRange {
		t.Errorf("TypeOf(%q) = %q, want %q", title, got, models.TypeRange)
	}
}
