// Package market は為替・国内株・海外株のウィジェットを1つの汎用ビューアで提供する。
//
// 市場ごとの違い（リソースパス、コードのクエリ名、銘柄一覧、期間、小数桁数）は
// すべてカタログ上のDescriptorで表し、ビューアの実装は共通にする。
package market

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/orbit/internal/model"
)

// Kind は市場の種別。URLパスにもそのまま使う。
type Kind string

const (
	KindForex       Kind = "forex"
	KindKoreanStock Kind = "korean-stock"
	KindGlobalStock Kind = "global-stock"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Instrument は選択可能な銘柄・通貨ペア。
type Instrument struct {
	Code   string `yaml:"code" json:"code"`
	Name   string `yaml:"name" json:"name"`
	Market string `yaml:"market,omitempty" json:"market,omitempty"`
}

// Period は選択可能な期間。Keyはバックエンドのパスに使われる。
type Period struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// Descriptor は1つの市場ウィジェットの定義。
type Descriptor struct {
	Kind       Kind   `yaml:"kind"`
	Title      string `yaml:"title"`
	Resource   string `yaml:"resource"`
	CodeParam  string `yaml:"code_param"`
	Subject    string `yaml:"subject"`
	ValueLabel string `yaml:"value_label"`
	Decimals   int32  `yaml:"decimals"`
	// ProbeAvailability が真なら、ビューア生成時に全銘柄のサマリーを確認する。
	ProbeAvailability bool         `yaml:"probe_availability"`
	Instruments       []Instrument `yaml:"instruments"`
	Periods           []Period     `yaml:"periods"`
}

// Instrument はコードに対応する銘柄を返す。
func (d *Descriptor) Instrument(code string) (Instrument, bool) {
	for _, in := range d.Instruments {
		if in.Code == code {
			return in, true
		}
	}
	return Instrument{}, false
}

// Period はキーに対応する期間を返す。
func (d *Descriptor) Period(key string) (Period, bool) {
	for _, p := range d.Periods {
		if p.Key == key {
			return p, true
		}
	}
	return Period{}, false
}

// Catalog は全市場の定義。
type Catalog struct {
	// Periods は市場側で省略した場合の期間一覧。
	Periods []Period     `yaml:"periods"`
	Markets []Descriptor `yaml:"markets"`

	byKind map[Kind]*Descriptor
}

// Descriptor は種別に対応する定義を返す。未知の種別はUNKNOWN_MARKETエラー。
func (c *Catalog) Descriptor(kind Kind) (*Descriptor, error) {
	if d, ok := c.byKind[kind]; ok {
		return d, nil
	}
	return nil, model.NewUnknownMarketError(string(kind))
}

// Kinds はカタログ順の種別一覧を返す。
func (c *Catalog) Kinds() []Kind {
	kinds := make([]Kind, 0, len(c.Markets))
	for _, d := range c.Markets {
		kinds = append(kinds, d.Kind)
	}
	return kinds
}

// LoadCatalog はカタログを読み込む。pathが空なら埋め込みのカタログを使う。
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read market catalog: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

// ParseCatalog はYAMLを解析して検証する。
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse market catalog: %w", err)
	}
	if len(c.Markets) == 0 {
		return nil, fmt.Errorf("market catalog has no markets")
	}

	c.byKind = make(map[Kind]*Descriptor, len(c.Markets))
	for i := range c.Markets {
		d := &c.Markets[i]
		if len(d.Periods) == 0 {
			d.Periods = c.Periods
		}
		if err := validateDescriptor(d); err != nil {
			return nil, err
		}
		if _, dup := c.byKind[d.Kind]; dup {
			return nil, fmt.Errorf("duplicate market kind %q", d.Kind)
		}
		c.byKind[d.Kind] = d
	}
	return &c, nil
}

func validateDescriptor(d *Descriptor) error {
	switch {
	case d.Kind == "":
		return fmt.Errorf("market without kind")
	case d.Resource == "":
		return fmt.Errorf("market %q: resource is required", d.Kind)
	case d.CodeParam == "":
		return fmt.Errorf("market %q: code_param is required", d.Kind)
	case len(d.Instruments) == 0:
		return fmt.Errorf("market %q: no instruments", d.Kind)
	case len(d.Periods) == 0:
		return fmt.Errorf("market %q: no periods", d.Kind)
	case d.Decimals < 0:
		return fmt.Errorf("market %q: negative decimals", d.Kind)
	}

	seen := make(map[string]bool, len(d.Instruments))
	for _, in := range d.Instruments {
		if in.Code == "" {
			return fmt.Errorf("market %q: instrument without code", d.Kind)
		}
		if seen[in.Code] {
			return fmt.Errorf("market %q: duplicate instrument %q", d.Kind, in.Code)
		}
		seen[in.Code] = true
	}
	return nil
}
