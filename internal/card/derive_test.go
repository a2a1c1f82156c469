package card

import (
	"testing"

	"github.com/finbrowse/stockcards/pkg/models"
)

func fptr(v float64) *float64 { return &v }

func TestDerivePriceFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		card models.Card
		want float64
	}{
		{
			name: "quote close wins",
			card: models.Card{
				Quote:   &models.Quote{Close: fptr(150)},
				Candles: []models.Aggregate{{Close: 140}},
				Prev:    &models.Aggregate{Close: 130},
			},
			want: 150,
		},
		{
			name: "last candle when no quote close",
			card: models.Card{
				Quote:   &models.Quote{PrevClose: fptr(120)},
				Candles: []models.Aggregate{{Close: 138}, {Close: 141}},
				Prev:    &models.Aggregate{Close: 130},
			},
			want: 141,
		},
		{
			name: "prev aggregate as last resort",
			card: models.Card{
				Prev: &models.Aggregate{Close: 130},
			},
			want: 130,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Derive(&tt.card)
			if d.Price == nil {
				t.Fatal("Price = nil")
			}
			if *d.Price != tt.want {
				t.Errorf("Price = %v, want %v", *d.Price, tt.want)
			}
		})
	}
}

func TestDerivePrevCloseFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		card models.Card
		want float64
	}{
		{
			name: "prev aggregate wins",
			card: models.Card{
				Quote:   &models.Quote{PrevClose: fptr(99)},
				Candles: []models.Aggregate{{Close: 97}, {Close: 98}},
				Prev:    &models.Aggregate{Close: 100},
			},
			want: 100,
		},
		{
			name: "quote pc when no prev aggregate",
			card: models.Card{
				Quote:   &models.Quote{PrevClose: fptr(99)},
				Candles: []models.Aggregate{{Close: 97}, {Close: 98}},
			},
			want: 99,
		},
		{
			name: "second to last candle as last resort",
			card: models.Card{
				Candles: []models.Aggregate{{Close: 97}, {Close: 98}},
			},
			want: 97,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Derive(&tt.card)
			if d.PrevClose == nil {
				t.Fatal("PrevClose = nil")
			}
			if *d.PrevClose != tt.want {
				t.Errorf("PrevClose = %v, want %v", *d.PrevClose, tt.want)
			}
		})
	}
}

func TestDeriveSingleCandleHasNoPrevClose(t *testing.T) {
	c := models.Card{Candles: []models.Aggregate{{Close: 98}}}
	d := Derive(&c)
	if d.PrevClose != nil {
		t.Errorf("PrevClose = %v, want nil with a single candle", *d.PrevClose)
	}
	if d.Price == nil || *d.Price != 98 {
		t.Errorf("Price = %v, want 98", d.Price)
	}
}

func TestDerivePercentChangeNativeWins(t *testing.T) {
	c := models.Card{
		Quote: &models.Quote{
			Close:         fptr(150),
			PrevClose:     fptr(100),
			PercentChange: fptr(1.2345),
		},
	}
	d := Derive(&c)
	if d.ChangePct == nil || *d.ChangePct != 1.23 {
		t.Fatalf("ChangePct = %v, want native 1.23", d.ChangePct)
	}
}

func TestDerivePercentChangeComputed(t *testing.T) {
	// Scenario: quote close 150, previous session close 145, no native
	// percent field. (150-145)/145*100 = 3.4482... rounds to 3.45.
	c := models.Card{
		Quote: &models.Quote{Close: fptr(150)},
		Prev:  &models.Aggregate{Close: 145},
	}
	d := Derive(&c)
	if d.ChangePct == nil {
		t.Fatal("ChangePct = nil")
	}
	if *d.ChangePct != 3.45 {
		t.Errorf("ChangePct = %v, want 3.45", *d.ChangePct)
	}
	if d.Direction != "up" {
		t.Errorf("Direction = %q, want up", d.Direction)
	}
}

func TestDerivePercentChangeFromCandlesOnly(t *testing.T) {
	c := models.Card{
		Candles: []models.Aggregate{{Close: 100}, {Close: 103.333}},
	}
	d := Derive(&c)
	if d.ChangePct == nil || *d.ChangePct != 3.33 {
		t.Fatalf("ChangePct = %v, want 3.33", d.ChangePct)
	}
}

func TestDerivePercentChangeZeroPrevClose(t *testing.T) {
	c := models.Card{
		Quote: &models.Quote{Close: fptr(5)},
		Prev:  &models.Aggregate{Close: 0},
	}
	d := Derive(&c)
	if d.ChangePct != nil {
		t.Errorf("ChangePct = %v, want nil when previous close is zero", *d.ChangePct)
	}
}

func TestDeriveDirection(t *testing.T) {
	tests := []struct {
		name string
		dp   *float64
		want string
	}{
		{"negative is down", fptr(-0.5), "down"},
		{"positive is up", fptr(0.5), "up"},
		{"zero is up", fptr(0), "up"},
		{"absent is flat", nil, "flat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Card{Quote: &models.Quote{PercentChange: tt.dp}}
			if d := Derive(&c); d.Direction != tt.want {
				t.Errorf("Direction = %q, want %q", d.Direction, tt.want)
			}
		})
	}
}

func TestDeriveEmptyCard(t *testing.T) {
	c := models.Card{Symbol: "ZZZZZ"}
	d := Derive(&c)
	if d.Price != nil || d.PrevClose != nil || d.ChangePct != nil {
		t.Errorf("empty card derived non-nil fields: %+v", d)
	}
	if d.Direction != "flat" {
		t.Errorf("Direction = %q, want flat", d.Direction)
	}
}

func TestDisplayable(t *testing.T) {
	tests := []struct {
		name string
		card models.Card
		want bool
	}{
		{"empty card", models.Card{}, false},
		{"quote with no prices", models.Card{Quote: &models.Quote{}}, false},
		{"quote close", models.Card{Quote: &models.Quote{Close: fptr(1)}}, true},
		{"quote prev close only", models.Card{Quote: &models.Quote{PrevClose: fptr(1)}}, true},
		{"prev aggregate only", models.Card{Prev: &models.Aggregate{Close: 1}}, true},
		{"candles only", models.Card{Candles: []models.Aggregate{{Close: 1}}}, true},
		{"profile alone is not enough", models.Card{Profile: &models.Profile{Name: "Acme"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Displayable(&tt.card); got != tt.want {
				t.Errorf("Displayable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{3.4482758, 3.45},
		{3.333, 3.33},
		{-1.005, -1},  // binary representation of -1.005 is just above
		{2.5, 2.5},
		{0, 0},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
