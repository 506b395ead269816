package domain

// Natural-key builders. Collection, preload and resolution must join key
// parts identically or the three stages stop agreeing on identity.

func (a CloudAccount) NaturalKey() string {
	return a.Provider + "|" + a.BillingAccountID
}

func (s Service) NaturalKey() string {
	return s.Provider + "|" + s.Name
}

func (r Region) NaturalKey() string {
	return r.Provider + "|" + r.RegionID
}

func (s Sku) NaturalKey() string { return s.SkuID }

func (r Resource) NaturalKey() string { return r.ResourceID }

func (s SubAccount) NaturalKey() string { return s.SubAccountID }

func (c CommitmentDiscount) NaturalKey() string { return c.DiscountID }
