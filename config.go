package fireplan

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed internal/assets/example-profile.yaml
var exampleProfileYAML string

const configVersion = "1.0"

// ConfigMetadata is the config envelope's free-form metadata block, per
// spec §6: a concrete struct with the documented fields plus a
// passthrough bucket for anything else.
type ConfigMetadata struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Language    string
	Description string
	// Extra preserves unknown keys on round-trip, per spec §6.
	Extra map[string]any
}

// OverrideDoc mirrors the wire-format shape of one Override entry.
type OverrideDoc struct {
	Age    int     `json:"age"`
	ItemID string  `json:"item_id"`
	Value  float64 `json:"value"`
}

// assetClassDoc/portfolioDoc/profileDoc/itemDoc/settingsDoc are the JSON
// wire-format shapes for spec §6's versioned config file; they deliberately
// mirror the field names of the JSON schema, not the internal Go types, so
// the config layer is the single place that translates between the wire
// contract and the core's constructor-validated domain types.
type assetClassDoc struct {
	Name                 string  `json:"name" yaml:"name"`
	AllocationPercentage float64 `json:"allocation_percentage" yaml:"allocation_percentage"`
	ExpectedReturn       float64 `json:"expected_return" yaml:"expected_return"`
	Volatility           float64 `json:"volatility" yaml:"volatility"`
	LiquidityLevel       string  `json:"liquidity_level,omitempty" yaml:"liquidity_level,omitempty"`
}

type portfolioDoc struct {
	AssetClasses      []assetClassDoc `json:"asset_classes" yaml:"asset_classes"`
	EnableRebalancing bool            `json:"enable_rebalancing" yaml:"enable_rebalancing"`
}

type profileDoc struct {
	BirthYear          int          `json:"birth_year" yaml:"birth_year"`
	CurrentYear        int          `json:"current_year" yaml:"current_year"`
	ExpectedFireAge    int          `json:"expected_fire_age" yaml:"expected_fire_age"`
	LegalRetirementAge int          `json:"legal_retirement_age" yaml:"legal_retirement_age"`
	LifeExpectancy     int          `json:"life_expectancy" yaml:"life_expectancy"`
	CurrentNetWorth    float64      `json:"current_net_worth" yaml:"current_net_worth"`
	InflationRate      float64      `json:"inflation_rate" yaml:"inflation_rate"`
	SafetyBufferMonths float64      `json:"safety_buffer_months" yaml:"safety_buffer_months"`
	BridgeDiscountRate float64      `json:"bridge_discount_rate,omitempty" yaml:"bridge_discount_rate,omitempty"`
	Portfolio          portfolioDoc `json:"portfolio" yaml:"portfolio"`
}

type itemDoc struct {
	ID                      string  `json:"id,omitempty" yaml:"id,omitempty"`
	Name                    string  `json:"name" yaml:"name"`
	AfterTaxAmountPerPeriod float64 `json:"after_tax_amount_per_period" yaml:"after_tax_amount_per_period"`
	TimeUnit                string  `json:"time_unit" yaml:"time_unit"`
	Frequency               string  `json:"frequency" yaml:"frequency"`
	IntervalPeriods         int     `json:"interval_periods" yaml:"interval_periods"`
	StartAge                int     `json:"start_age" yaml:"start_age"`
	EndAge                  *int    `json:"end_age,omitempty" yaml:"end_age,omitempty"`
	AnnualGrowthRate        float64 `json:"annual_growth_rate" yaml:"annual_growth_rate"`
	IsIncome                bool    `json:"is_income" yaml:"is_income"`
	Category                string  `json:"category,omitempty" yaml:"category,omitempty"`
}

type settingsDoc struct {
	NumSimulations         int     `json:"num_simulations" yaml:"num_simulations"`
	ConfidenceLevel        float64 `json:"confidence_level" yaml:"confidence_level"`
	IncludeBlackSwanEvents bool    `json:"include_black_swan_events" yaml:"include_black_swan_events"`
	IncomeBaseVolatility   float64 `json:"income_base_volatility" yaml:"income_base_volatility"`
	IncomeMinimumFactor    float64 `json:"income_minimum_factor" yaml:"income_minimum_factor"`
	ExpenseBaseVolatility  float64 `json:"expense_base_volatility" yaml:"expense_base_volatility"`
	ExpenseMinimumFactor   float64 `json:"expense_minimum_factor" yaml:"expense_minimum_factor"`
	Seed                   *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

type metadataDoc struct {
	CreatedAt   string
	UpdatedAt   string
	Language    string
	Description string
	// Extra preserves any metadata keys this version of fireplan doesn't
	// recognize, so round-tripping a config written by a newer version
	// doesn't silently drop fields.
	Extra map[string]any
}

var metadataKnownKeys = map[string]bool{
	"created_at": true, "updated_at": true, "language": true, "description": true,
}

func (m metadataDoc) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.CreatedAt != "" {
		out["created_at"] = m.CreatedAt
	}
	if m.UpdatedAt != "" {
		out["updated_at"] = m.UpdatedAt
	}
	if m.Language != "" {
		out["language"] = m.Language
	}
	if m.Description != "" {
		out["description"] = m.Description
	}
	return json.Marshal(out)
}

func (m *metadataDoc) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if s, ok := raw["created_at"].(string); ok {
		m.CreatedAt = s
	}
	if s, ok := raw["updated_at"].(string); ok {
		m.UpdatedAt = s
	}
	if s, ok := raw["language"].(string); ok {
		m.Language = s
	}
	if s, ok := raw["description"].(string); ok {
		m.Description = s
	}
	m.Extra = make(map[string]any, len(raw))
	for k, v := range raw {
		if !metadataKnownKeys[k] {
			m.Extra[k] = v
		}
	}
	return nil
}

// configDoc is the top-level v1.0 JSON shape of spec §6.
type configDoc struct {
	Version            string        `json:"version"`
	Metadata           metadataDoc   `json:"metadata"`
	Profile            profileDoc    `json:"profile"`
	IncomeItems        []itemDoc     `json:"income_items"`
	ExpenseItems       []itemDoc     `json:"expense_items"`
	Overrides          []OverrideDoc `json:"overrides"`
	SimulationSettings settingsDoc   `json:"simulation_settings"`
}

// PlanDocument is the decoded, domain-typed form of a loaded config file:
// everything needed to build a projection and run the engine/advisor.
type PlanDocument struct {
	Metadata     ConfigMetadata
	Profile      *UserProfile
	IncomeItems  []*IncomeExpenseItem
	ExpenseItems []*IncomeExpenseItem
	Overrides    []Override
	Settings     SimulationSettings
}

func assetClassFromDoc(d assetClassDoc) (AssetClass, error) {
	return NewAssetClass(d.Name, d.AllocationPercentage, d.ExpectedReturn, d.Volatility, LiquidityLevel(d.LiquidityLevel))
}

func profileFromDoc(d profileDoc) (*UserProfile, error) {
	assetClasses := make([]AssetClass, len(d.Portfolio.AssetClasses))
	for i, ad := range d.Portfolio.AssetClasses {
		ac, err := assetClassFromDoc(ad)
		if err != nil {
			return nil, err
		}
		assetClasses[i] = ac
	}
	portfolio, err := NewPortfolioConfiguration(assetClasses, d.Portfolio.EnableRebalancing)
	if err != nil {
		return nil, err
	}
	profile, err := NewUserProfile(d.BirthYear, d.CurrentYear, d.ExpectedFireAge, d.LegalRetirementAge, d.LifeExpectancy,
		decimal.NewFromFloat(d.CurrentNetWorth), d.InflationRate, d.SafetyBufferMonths, portfolio)
	if err != nil {
		return nil, err
	}
	profile.BridgeDiscountRate = d.BridgeDiscountRate
	return profile, nil
}

func itemFromDoc(d itemDoc, isIncome bool, currentAge, lifeExpectancy int) (*IncomeExpenseItem, error) {
	frequency := ItemFrequency(d.Frequency)
	if frequency == "" {
		frequency = Recurring
	}
	unit := TimeUnit(d.TimeUnit)
	if unit == "" {
		unit = Annually
	}
	interval := d.IntervalPeriods
	if interval <= 0 {
		interval = 1
	}
	return NewIncomeExpenseItem(d.ID, d.Name, decimal.NewFromFloat(d.AfterTaxAmountPerPeriod), unit, frequency, interval,
		d.StartAge, d.EndAge, d.AnnualGrowthRate, isIncome, d.Category, currentAge, lifeExpectancy)
}

func settingsFromDoc(d settingsDoc) SimulationSettings {
	s := DefaultSimulationSettings()
	if d.NumSimulations > 0 {
		s.NumSimulations = d.NumSimulations
	}
	if d.ConfidenceLevel > 0 {
		s.ConfidenceLevel = d.ConfidenceLevel
	}
	s.IncludeBlackSwanEvents = d.IncludeBlackSwanEvents
	if d.IncomeBaseVolatility > 0 {
		s.IncomeBaseVolatility = d.IncomeBaseVolatility
	}
	if d.IncomeMinimumFactor > 0 {
		s.IncomeMinimumFactor = d.IncomeMinimumFactor
	}
	if d.ExpenseBaseVolatility > 0 {
		s.ExpenseBaseVolatility = d.ExpenseBaseVolatility
	}
	if d.ExpenseMinimumFactor > 0 {
		s.ExpenseMinimumFactor = d.ExpenseMinimumFactor
	}
	s.Seed = d.Seed
	return s
}

// DecodeConfig parses a v1.0 JSON config document (spec §6) into domain
// types, running every constructor-time validation along the way.
func DecodeConfig(data []byte) (*PlanDocument, error) {
	var doc configDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if doc.Version != configVersion {
		return nil, newValidationError("version", "unsupported config version %q, expected %q", doc.Version, configVersion)
	}

	profile, err := profileFromDoc(doc.Profile)
	if err != nil {
		return nil, err
	}
	currentAge := profile.CurrentAge()

	incomeItems := make([]*IncomeExpenseItem, len(doc.IncomeItems))
	for i, id := range doc.IncomeItems {
		item, err := itemFromDoc(id, true, currentAge, profile.LifeExpectancy)
		if err != nil {
			return nil, err
		}
		incomeItems[i] = item
	}
	expenseItems := make([]*IncomeExpenseItem, len(doc.ExpenseItems))
	for i, ed := range doc.ExpenseItems {
		item, err := itemFromDoc(ed, false, currentAge, profile.LifeExpectancy)
		if err != nil {
			return nil, err
		}
		expenseItems[i] = item
	}

	overrides := make([]Override, len(doc.Overrides))
	for i, od := range doc.Overrides {
		overrides[i] = Override{Age: od.Age, ItemID: od.ItemID, Value: decimal.NewFromFloat(od.Value)}
	}

	metadata := ConfigMetadata{Language: doc.Metadata.Language, Description: doc.Metadata.Description, Extra: doc.Metadata.Extra}
	if t, err := time.Parse(time.RFC3339, doc.Metadata.CreatedAt); err == nil {
		metadata.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, doc.Metadata.UpdatedAt); err == nil {
		metadata.UpdatedAt = t
	}

	return &PlanDocument{
		Metadata:     metadata,
		Profile:      profile,
		IncomeItems:  incomeItems,
		ExpenseItems: expenseItems,
		Overrides:    overrides,
		Settings:     settingsFromDoc(doc.SimulationSettings),
	}, nil
}

func assetClassToDoc(a AssetClass) assetClassDoc {
	return assetClassDoc{
		Name:                 a.DisplayName,
		AllocationPercentage: a.AllocationPercentage,
		ExpectedReturn:       a.ExpectedReturn,
		Volatility:           a.Volatility,
		LiquidityLevel:       string(a.LiquidityLevel),
	}
}

func itemToDoc(item *IncomeExpenseItem) itemDoc {
	amount, _ := item.AfterTaxAmountPerPeriod.Float64()
	return itemDoc{
		ID:                      item.ID,
		Name:                    item.Name,
		AfterTaxAmountPerPeriod: amount,
		TimeUnit:                string(item.TimeUnit),
		Frequency:               string(item.Frequency),
		IntervalPeriods:         item.IntervalPeriods,
		StartAge:                item.StartAge,
		EndAge:                  item.EndAge,
		AnnualGrowthRate:        item.AnnualGrowthRate,
		IsIncome:                item.IsIncome,
		Category:                item.Category,
	}
}

// EncodeConfig serializes a PlanDocument back to the v1.0 JSON wire format.
func EncodeConfig(doc *PlanDocument) ([]byte, error) {
	netWorth, _ := doc.Profile.CurrentNetWorth.Float64()
	assetDocs := make([]assetClassDoc, len(doc.Profile.Portfolio.AssetClasses))
	for i, a := range doc.Profile.Portfolio.AssetClasses {
		assetDocs[i] = assetClassToDoc(a)
	}

	incomeDocs := make([]itemDoc, len(doc.IncomeItems))
	for i, item := range doc.IncomeItems {
		incomeDocs[i] = itemToDoc(item)
	}
	expenseDocs := make([]itemDoc, len(doc.ExpenseItems))
	for i, item := range doc.ExpenseItems {
		expenseDocs[i] = itemToDoc(item)
	}

	overrideDocs := make([]OverrideDoc, len(doc.Overrides))
	for i, ov := range doc.Overrides {
		value, _ := ov.Value.Float64()
		overrideDocs[i] = OverrideDoc{Age: ov.Age, ItemID: ov.ItemID, Value: value}
	}

	metadataOut := metadataDoc{Language: doc.Metadata.Language, Description: doc.Metadata.Description, Extra: doc.Metadata.Extra}
	if !doc.Metadata.CreatedAt.IsZero() {
		metadataOut.CreatedAt = doc.Metadata.CreatedAt.Format(time.RFC3339)
	}
	if !doc.Metadata.UpdatedAt.IsZero() {
		metadataOut.UpdatedAt = doc.Metadata.UpdatedAt.Format(time.RFC3339)
	}

	out := configDoc{
		Version:  configVersion,
		Metadata: metadataOut,
		Profile: profileDoc{
			BirthYear:          doc.Profile.BirthYear,
			CurrentYear:        doc.Profile.CurrentYear,
			ExpectedFireAge:    doc.Profile.ExpectedFireAge,
			LegalRetirementAge: doc.Profile.LegalRetirementAge,
			LifeExpectancy:     doc.Profile.LifeExpectancy,
			CurrentNetWorth:    netWorth,
			InflationRate:      doc.Profile.InflationRate,
			SafetyBufferMonths: doc.Profile.SafetyBufferMonths,
			BridgeDiscountRate: doc.Profile.BridgeDiscountRate,
			Portfolio: portfolioDoc{
				AssetClasses:      assetDocs,
				EnableRebalancing: doc.Profile.Portfolio.EnableRebalancing,
			},
		},
		IncomeItems:  incomeDocs,
		ExpenseItems: expenseDocs,
		Overrides:    overrideDocs,
		SimulationSettings: settingsDoc{
			NumSimulations:         doc.Settings.NumSimulations,
			ConfidenceLevel:        doc.Settings.ConfidenceLevel,
			IncludeBlackSwanEvents: doc.Settings.IncludeBlackSwanEvents,
			IncomeBaseVolatility:   doc.Settings.IncomeBaseVolatility,
			IncomeMinimumFactor:    doc.Settings.IncomeMinimumFactor,
			ExpenseBaseVolatility:  doc.Settings.ExpenseBaseVolatility,
			ExpenseMinimumFactor:   doc.Settings.ExpenseMinimumFactor,
			Seed:                   doc.Settings.Seed,
		},
	}
	return json.MarshalIndent(out, "", "  ")
}

// yamlExampleProfile is the shape of the bundled example-profile.yaml
// asset, a human-editable alternative entry point built on go:embed +
// gopkg.in/yaml.v3. It carries configDoc's profile, income_items,
// expense_items and simulation_settings sections (no version, metadata or
// overrides) in YAML for easy hand-editing.
type yamlExampleProfile struct {
	Profile            profileDoc `yaml:"profile"`
	IncomeItems        []itemDoc  `yaml:"income_items"`
	ExpenseItems       []itemDoc  `yaml:"expense_items"`
	SimulationSettings settingsDoc `yaml:"simulation_settings"`
}

// LoadDefaultConfig parses the embedded example-profile.yaml asset, used
// when fireplan is run with no config argument.
func LoadDefaultConfig() (*PlanDocument, error) {
	var y yamlExampleProfile
	if err := yaml.Unmarshal([]byte(exampleProfileYAML), &y); err != nil {
		return nil, fmt.Errorf("parse embedded example profile: %w", err)
	}

	profile, err := profileFromDoc(y.Profile)
	if err != nil {
		return nil, err
	}
	currentAge := profile.CurrentAge()

	incomeItems := make([]*IncomeExpenseItem, len(y.IncomeItems))
	for i, id := range y.IncomeItems {
		item, err := itemFromDoc(id, true, currentAge, profile.LifeExpectancy)
		if err != nil {
			return nil, err
		}
		incomeItems[i] = item
	}
	expenseItems := make([]*IncomeExpenseItem, len(y.ExpenseItems))
	for i, ed := range y.ExpenseItems {
		item, err := itemFromDoc(ed, false, currentAge, profile.LifeExpectancy)
		if err != nil {
			return nil, err
		}
		expenseItems[i] = item
	}

	return &PlanDocument{
		Profile:      profile,
		IncomeItems:  incomeItems,
		ExpenseItems: expenseItems,
		Settings:     settingsFromDoc(y.SimulationSettings),
	}, nil
}
