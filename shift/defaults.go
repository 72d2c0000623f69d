package shift

// DefaultCurrency is used when neither the settings record nor configuration
// names a currency.
const DefaultCurrency = "USD"

// DefaultShiftCombinations returns the built-in combination set injected into
// settings records that have none. A fresh slice is returned on every call.
func DefaultShiftCombinations() []ShiftCombination {
	return []ShiftCombination{
		{ID: "day", Name: "Day", Shifts: []string{"08:00-16:00"}, Hours: 8, Enabled: true},
		{ID: "evening", Name: "Evening", Shifts: []string{"16:00-00:00"}, Hours: 8, Enabled: true},
		{ID: "night", Name: "Night", Shifts: []string{"00:00-08:00"}, Hours: 8, Enabled: true},
		{ID: "long-day", Name: "Long day", Shifts: []string{"08:00-20:00"}, Hours: 12, Enabled: true},
		{ID: "holiday", Name: "Holiday", Shifts: []string{"08:00-16:00"}, Hours: 8, Enabled: true},
	}
}

// DefaultSettings returns a defaults-only settings record for currency.
func DefaultSettings(currency string) Settings {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Settings{
		SchemaVersion:     SettingsSchemaVersion,
		Currency:          currency,
		CustomShifts:      []CustomShift{},
		ShiftCombinations: DefaultShiftCombinations(),
	}
}
