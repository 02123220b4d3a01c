// internal/approval/checklist.go
package approval

import (
	"fmt"

	"marketplace-console/internal/common/errors"
)

type ChecklistItem string

const (
	ItemPhoneVerified            ChecklistItem = "phoneVerified"
	ItemEmailVerified            ChecklistItem = "emailVerified"
	ItemIdentityVerified         ChecklistItem = "identityVerified"
	ItemBusinessLicenseVerified  ChecklistItem = "businessLicenseVerified"
	ItemTaxIDVerified            ChecklistItem = "taxIdVerified"
	ItemAddressVerified          ChecklistItem = "addressVerified"
	ItemBankDetailsVerified      ChecklistItem = "bankDetailsVerified"
	ItemReraRegistrationVerified ChecklistItem = "reraRegistrationVerified"
	ItemPortfolioReviewed        ChecklistItem = "portfolioReviewed"
	ItemReferencesChecked        ChecklistItem = "referencesChecked"
	ItemBackgroundCheckCompleted ChecklistItem = "backgroundCheckCompleted"
	ItemAgreementSigned          ChecklistItem = "agreementSigned"
)

// Items lists every checklist item in display order.
var Items = []ChecklistItem{
	ItemPhoneVerified,
	ItemEmailVerified,
	ItemIdentityVerified,
	ItemBusinessLicenseVerified,
	ItemTaxIDVerified,
	ItemAddressVerified,
	ItemBankDetailsVerified,
	ItemReraRegistrationVerified,
	ItemPortfolioReviewed,
	ItemReferencesChecked,
	ItemBackgroundCheckCompleted,
	ItemAgreementSigned,
}

// Checklist holds the twelve verification flags.
type Checklist struct {
	PhoneVerified            bool `json:"phoneVerified"`
	EmailVerified            bool `json:"emailVerified"`
	IdentityVerified         bool `json:"identityVerified"`
	BusinessLicenseVerified  bool `json:"businessLicenseVerified"`
	TaxIDVerified            bool `json:"taxIdVerified"`
	AddressVerified          bool `json:"addressVerified"`
	BankDetailsVerified      bool `json:"bankDetailsVerified"`
	ReraRegistrationVerified bool `json:"reraRegistrationVerified"`
	PortfolioReviewed        bool `json:"portfolioReviewed"`
	ReferencesChecked        bool `json:"referencesChecked"`
	BackgroundCheckCompleted bool `json:"backgroundCheckCompleted"`
	AgreementSigned          bool `json:"agreementSigned"`
}

func (c *Checklist) field(item ChecklistItem) *bool {
	switch item {
	case ItemPhoneVerified:
		return &c.PhoneVerified
	case ItemEmailVerified:
		return &c.EmailVerified
	case ItemIdentityVerified:
		return &c.IdentityVerified
	case ItemBusinessLicenseVerified:
		return &c.BusinessLicenseVerified
	case ItemTaxIDVerified:
		return &c.TaxIDVerified
	case ItemAddressVerified:
		return &c.AddressVerified
	case ItemBankDetailsVerified:
		return &c.BankDetailsVerified
	case ItemReraRegistrationVerified:
		return &c.ReraRegistrationVerified
	case ItemPortfolioReviewed:
		return &c.PortfolioReviewed
	case ItemReferencesChecked:
		return &c.ReferencesChecked
	case ItemBackgroundCheckCompleted:
		return &c.BackgroundCheckCompleted
	case ItemAgreementSigned:
		return &c.AgreementSigned
	}
	return nil
}

// Get returns the value of item; unknown items read as false.
func (c Checklist) Get(item ChecklistItem) bool {
	if f := c.field(item); f != nil {
		return *f
	}
	return false
}

// Set updates item. Unknown items are a validation error.
func (c *Checklist) Set(item ChecklistItem, value bool) error {
	f := c.field(item)
	if f == nil {
		return errors.NewValidationError("checklist", fmt.Sprintf("unknown checklist item %q", item))
	}
	*f = value
	return nil
}

// Missing lists unchecked items in display order.
func (c Checklist) Missing() []ChecklistItem {
	var missing []ChecklistItem
	for _, item := range Items {
		if !c.Get(item) {
			missing = append(missing, item)
		}
	}
	return missing
}

// Complete reports whether all twelve items are checked.
func (c Checklist) Complete() bool {
	return len(c.Missing()) == 0
}

// ParseItem validates a checklist item name.
func ParseItem(name string) (ChecklistItem, error) {
	item := ChecklistItem(name)
	var c Checklist
	if c.field(item) == nil {
		return "", errors.NewValidationError("checklist", fmt.Sprintf("unknown checklist item %q", name))
	}
	return item, nil
}

func itemNames(items []ChecklistItem) []string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = string(item)
	}
	return names
}
