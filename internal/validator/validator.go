package validator

import (
	"errors"
	"math/big"
	"regexp"
	"strings"

	"creatorpay/internal/models"
)

var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidCouponCode  = errors.New("invalid coupon code")
	ErrInvalidBankDetails = errors.New("invalid bank details")
)

var (
	emailRegex      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	couponRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,40}$`)
	usRoutingRegex  = regexp.MustCompile(`^\d{9}$`)
	usAccountRegex  = regexp.MustCompile(`^\d{4,17}$`)
	gbSortCodeRegex = regexp.MustCompile(`^\d{6}$`)
	gbAccountRegex  = regexp.MustCompile(`^\d{8}$`)
	ibanRegex       = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{11,30}$`)
)

// Countries whose payouts are addressed by IBAN.
var ibanCountries = map[string]bool{
	"AT": true, "BE": true, "DE": true, "DK": true, "ES": true, "FI": true,
	"FR": true, "IE": true, "IT": true, "LU": true, "NL": true, "NO": true,
	"PL": true, "PT": true, "SE": true, "CH": true,
}

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) > 80 {
		return ErrInvalidName
	}
	return nil
}

func ValidateCouponCode(code string) error {
	if !couponRegex.MatchString(code) {
		return ErrInvalidCouponCode
	}
	return nil
}

// ValidateBankDetails applies the account number format of the payout country.
// Countries without a known format only need a holder and an account number.
func ValidateBankDetails(d models.BankDetails) error {
	country := strings.ToUpper(strings.TrimSpace(d.Country))
	if len(country) != 2 || strings.TrimSpace(d.AccountHolder) == "" {
		return ErrInvalidBankDetails
	}
	switch {
	case country == "US":
		if !usRoutingRegex.MatchString(d.RoutingNumber) || !usAccountRegex.MatchString(d.AccountNumber) {
			return ErrInvalidBankDetails
		}
	case country == "GB":
		sortCode := strings.ReplaceAll(d.SortCode, "-", "")
		if !gbSortCodeRegex.MatchString(sortCode) || !gbAccountRegex.MatchString(d.AccountNumber) {
			return ErrInvalidBankDetails
		}
	case ibanCountries[country]:
		iban := normalizeIBAN(d.IBAN)
		if !strings.HasPrefix(iban, country) || !ValidIBAN(iban) {
			return ErrInvalidBankDetails
		}
	default:
		if strings.TrimSpace(d.AccountNumber) == "" && strings.TrimSpace(d.IBAN) == "" {
			return ErrInvalidBankDetails
		}
	}
	return nil
}

// ValidIBAN checks the ISO 13616 mod-97 checksum.
func ValidIBAN(raw string) bool {
	iban := normalizeIBAN(raw)
	if !ibanRegex.MatchString(iban) {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			digits.WriteString(big.NewInt(int64(r-'A') + 10).String())
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

func normalizeIBAN(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
}
