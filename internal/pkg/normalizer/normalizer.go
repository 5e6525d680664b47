package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/roamfox/roamfox/app/models"
	"github.com/roamfox/roamfox/app/repository"
)

// Provider slugs with a wired catalog integration.
const (
	ProviderESIMAccess = "esimaccess"
	ProviderAirhub     = "airhub"
	ProviderSimovia    = "simovia"
)

// RawOffer is one provider-specific offer exactly as the upstream catalog
// returned it: the provider-native id plus an opaque payload. Raw offers are
// transient and never persisted; everything past this boundary works on
// models.ESIMPackage.
type RawOffer struct {
	ProviderSlug string
	NativeID     string
	Payload      json.RawMessage
}

// esimAccessOffer is the primary provider's catalog entry shape.
type esimAccessOffer struct {
	PackageCode  string `json:"packageCode"`
	Name         string `json:"name"`
	DataAmount   string `json:"dataAmount"`
	ValidityDays int    `json:"validityDays"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	CountryCode  string `json:"countryCode"`
	RegionSlug   string `json:"region"`
	VoiceMinutes int    `json:"voiceMinutes"`
	SMSCount     int    `json:"smsCount"`
}

// airhubOffer is the first secondary provider's catalog entry shape.
type airhubOffer struct {
	PlanID   string  `json:"id"`
	PlanName string  `json:"planName"`
	Data     string  `json:"data"`
	Days     int     `json:"vDays"`
	Cost     float64 `json:"cost"`
	Currency string  `json:"curr"`
	Country  string  `json:"country"`
	Voice    *int    `json:"voice"`
	SMS      *int    `json:"sms"`
}

// simoviaOffer is the second secondary provider's catalog entry shape.
type simoviaOffer struct {
	SKU      string `json:"sku"`
	Title    string `json:"title"`
	Volume   string `json:"volume"`
	Validity int    `json:"validity"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Dest     string `json:"dest"`
}

// Normalizer converts provider-specific raw offers into the unified package
// shape. Provider shapes never leak past this boundary.
type Normalizer struct {
	destinations repository.DestinationRepository
}

// New creates a normalizer backed by the destination lookup table.
func New(destinations repository.DestinationRepository) *Normalizer {
	return &Normalizer{destinations: destinations}
}

// Normalize maps one raw offer into an ESIMPackage. ProviderID, SellPrice
// and LastSeenAt are stamped downstream by the sync service. A returned
// error means this single offer is skipped; it never aborts the batch.
func (n *Normalizer) Normalize(providerSlug string, offer RawOffer) (*models.ESIMPackage, error) {
	switch providerSlug {
	case ProviderESIMAccess:
		return n.normalizeESIMAccess(offer)
	case ProviderAirhub:
		return n.normalizeAirhub(offer)
	case ProviderSimovia:
		return n.normalizeSimovia(offer)
	default:
		return nil, fmt.Errorf("no normalizer for provider %q", providerSlug)
	}
}

func (n *Normalizer) normalizeESIMAccess(offer RawOffer) (*models.ESIMPackage, error) {
	var raw esimAccessOffer
	if err := json.Unmarshal(offer.Payload, &raw); err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}
	if raw.PackageCode == "" {
		return nil, fmt.Errorf("offer %s: missing packageCode", offer.NativeID)
	}

	bytes, unlimited, err := ParseDataAmount(raw.DataAmount)
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}
	cost, err := parseCost(raw.Price)
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}
	if raw.ValidityDays <= 0 {
		return nil, fmt.Errorf("offer %s: invalid validity %d", offer.NativeID, raw.ValidityDays)
	}
	currency, err := normalizeCurrency(raw.Currency)
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}

	pkg := &models.ESIMPackage{
		ProviderNativeID: raw.PackageCode,
		Title:            raw.Name,
		DataAmountBytes:  bytes,
		IsUnlimited:      unlimited,
		ValidityDays:     raw.ValidityDays,
		WholesaleCost:    cost,
		Currency:         currency,
		VoiceMinutes:     raw.VoiceMinutes,
		SMSCount:         raw.SMSCount,
		Active:           true,
	}
	n.resolveScope(pkg, raw.CountryCode, raw.RegionSlug)
	return pkg, nil
}

func (n *Normalizer) normalizeAirhub(offer RawOffer) (*models.ESIMPackage, error) {
	var raw airhubOffer
	if err := json.Unmarshal(offer.Payload, &raw); err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}
	if raw.PlanID == "" {
		return nil, fmt.Errorf("offer %s: missing plan id", offer.NativeID)
	}

	bytes, unlimited, err := ParseDataAmount(raw.Data)
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}
	if raw.Cost <= 0 {
		return nil, fmt.Errorf("offer %s: invalid cost %v", offer.NativeID, raw.Cost)
	}
	if raw.Days <= 0 {
		return nil, fmt.Errorf("offer %s: invalid validity %d", offer.NativeID, raw.Days)
	}
	currency, err := normalizeCurrency(raw.Currency)
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}

	// Missing voice/SMS credits default to zero.
	voice, sms := 0, 0
	if raw.Voice != nil {
		voice = *raw.Voice
	}
	if raw.SMS != nil {
		sms = *raw.SMS
	}

	pkg := &models.ESIMPackage{
		ProviderNativeID: raw.PlanID,
		Title:            raw.PlanName,
		DataAmountBytes:  bytes,
		IsUnlimited:      unlimited,
		ValidityDays:     raw.Days,
		WholesaleCost:    decimal.NewFromFloat(raw.Cost),
		Currency:         currency,
		VoiceMinutes:     voice,
		SMSCount:         sms,
		Active:           true,
	}
	n.resolveScope(pkg, raw.Country, "")
	return pkg, nil
}

func (n *Normalizer) normalizeSimovia(offer RawOffer) (*models.ESIMPackage, error) {
	var raw simoviaOffer
	if err := json.Unmarshal(offer.Payload, &raw); err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}
	if raw.SKU == "" {
		return nil, fmt.Errorf("offer %s: missing sku", offer.NativeID)
	}

	bytes, unlimited, err := ParseDataAmount(raw.Volume)
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}
	cost, err := parseCost(raw.Price)
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}
	if raw.Validity <= 0 {
		return nil, fmt.Errorf("offer %s: invalid validity %d", offer.NativeID, raw.Validity)
	}
	currency, err := normalizeCurrency(raw.Currency)
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", offer.NativeID, err)
	}

	pkg := &models.ESIMPackage{
		ProviderNativeID: raw.SKU,
		Title:            raw.Title,
		DataAmountBytes:  bytes,
		IsUnlimited:      unlimited,
		ValidityDays:     raw.Validity,
		WholesaleCost:    cost,
		Currency:         currency,
		Active:           true,
	}
	n.resolveScope(pkg, raw.Dest, "")
	return pkg, nil
}

// resolveScope maps a provider-native country or region reference onto the
// internal destination/region tables. Unresolved offers keep a nil scope:
// they stay in the catalog for audit but never reach customer listings.
func (n *Normalizer) resolveScope(pkg *models.ESIMPackage, countryCode, regionSlug string) {
	if code := ResolveCountryCode(countryCode); code != "" {
		if dest, err := n.destinations.GetByCountryCode(code); err == nil {
			pkg.DestinationID = &dest.ID
			pkg.RegionID = dest.RegionID
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return
		}
	}
	if regionSlug != "" {
		slug := strings.ToLower(strings.TrimSpace(regionSlug))
		if region, err := n.destinations.GetRegionBySlug(slug); err == nil {
			pkg.RegionID = &region.ID
		}
	}
}

// normalizeCurrency uppercases an ISO 4217 code. A malformed code is an
// error: guessing a currency would mislabel the price.
func normalizeCurrency(currency string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if len(c) != 3 {
		return "", fmt.Errorf("invalid currency %q", currency)
	}
	return c, nil
}

func parseCost(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid cost %q", s)
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("invalid cost %q", s)
	}
	return d, nil
}

const (
	kib = int64(1024)
	mib = 1024 * kib
	gib = 1024 * mib
	tib = 1024 * gib

	// unlimitedThreshold: any finite amount this large is treated as an
	// unlimited plan regardless of how the provider labels it.
	unlimitedThreshold = tib
)

// unlimitedSentinel is the magic volume string some providers use for
// unlimited plans.
const unlimitedSentinel = "-1MB"

// ParseDataAmount parses a free-text data amount ("1GB", "500 MB", "2.5GB",
// "Unlimited", "-1MB") into a canonical byte count or an unlimited flag.
func ParseDataAmount(s string) (bytes int64, unlimited bool, err error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, false, fmt.Errorf("empty data amount")
	}
	if strings.Contains(strings.ToLower(v), "unlimited") {
		return models.UnlimitedDataSentinel, true, nil
	}
	if strings.EqualFold(v, unlimitedSentinel) {
		return models.UnlimitedDataSentinel, true, nil
	}

	upper := strings.ToUpper(strings.ReplaceAll(v, " ", ""))
	unit := int64(1)
	switch {
	case strings.HasSuffix(upper, "TB"):
		unit, upper = tib, strings.TrimSuffix(upper, "TB")
	case strings.HasSuffix(upper, "GB"):
		unit, upper = gib, strings.TrimSuffix(upper, "GB")
	case strings.HasSuffix(upper, "MB"):
		unit, upper = mib, strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "KB"):
		unit, upper = kib, strings.TrimSuffix(upper, "KB")
	}

	amount, err := strconv.ParseFloat(upper, 64)
	if err != nil {
		return 0, false, fmt.Errorf("unparseable data amount %q", s)
	}
	if amount <= 0 {
		return 0, false, fmt.Errorf("non-positive data amount %q", s)
	}

	total := int64(amount * float64(unit))
	if total >= unlimitedThreshold {
		return models.UnlimitedDataSentinel, true, nil
	}
	return total, false, nil
}
