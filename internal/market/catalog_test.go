package market

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/orbit/internal/model"
)

func TestLoadCatalog_Embedded(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	kinds := c.Kinds()
	want := []Kind{KindForex, KindKoreanStock, KindGlobalStock}
	if len(kinds) != len(want) {
		t.Fatalf("Kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Kinds[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}

	tests := []struct {
		kind        Kind
		param       string
		decimals    int32
		instruments int
		first       string
		probe       bool
	}{
		{KindForex, "currencyCode", 3, 3, "EUR/USD", false},
		{KindKoreanStock, "stockCode", 2, 20, "005930", false},
		{KindGlobalStock, "stockCode", 2, 20, "TSLA", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			d, err := c.Descriptor(tt.kind)
			if err != nil {
				t.Fatalf("Descriptor: %v", err)
			}
			if d.CodeParam != tt.param || d.Decimals != tt.decimals || d.ProbeAvailability != tt.probe {
				t.Errorf("descriptor = %+v", d)
			}
			if len(d.Instruments) != tt.instruments || d.Instruments[0].Code != tt.first {
				t.Errorf("instruments = %d (first %q)", len(d.Instruments), d.Instruments[0].Code)
			}
			if len(d.Periods) != 5 || d.Periods[0].Key != "today" || d.Periods[4].Key != "threemonth" {
				t.Errorf("periods = %+v", d.Periods)
			}
		})
	}

	g, _ := c.Descriptor(KindGlobalStock)
	if in, ok := g.Instrument("00700"); !ok || in.Market != "HKS" || in.Name != "텐센트" {
		t.Errorf("00700 = %+v, %v", in, ok)
	}
	if in, ok := g.Instrument("BRK/B"); !ok || in.Market != "NYS" {
		t.Errorf("BRK/B = %+v, %v", in, ok)
	}
}

func TestCatalog_UnknownKind(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	_, err = c.Descriptor("crypto")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnknownMarket {
		t.Errorf("error = %v, want UNKNOWN_MARKET", err)
	}
}

func TestLoadCatalog_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	yaml := `
periods:
  - { key: today, label: 실시간 }
markets:
  - kind: forex
    resource: /fx
    code_param: currencyCode
    decimals: 4
    instruments:
      - { code: USD/KRW, name: 달러/원 }
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	d, _ := c.Descriptor(KindForex)
	if d.Decimals != 4 || len(d.Periods) != 1 {
		t.Errorf("共通の期間一覧が使われるはず: %+v", d)
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("存在しないファイルはエラーになるはず")
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"市場なし", `markets: []`, "no markets"},
		{"resourceなし", `
markets:
  - kind: forex
    code_param: c
    periods: [{key: today}]
    instruments: [{code: A}]`, "resource"},
		{"銘柄の重複", `
markets:
  - kind: forex
    resource: /fx
    code_param: c
    periods: [{key: today}]
    instruments: [{code: A}, {code: A}]`, "duplicate instrument"},
		{"期間なし", `
markets:
  - kind: forex
    resource: /fx
    code_param: c
    instruments: [{code: A}]`, "no periods"},
		{"種別の重複", `
periods: [{key: today}]
markets:
  - {kind: forex, resource: /a, code_param: c, instruments: [{code: A}]}
  - {kind: forex, resource: /b, code_param: c, instruments: [{code: B}]}`, "duplicate market kind"},
		{"YAML構文エラー", `markets: [`, "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
