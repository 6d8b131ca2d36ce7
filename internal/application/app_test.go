package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/bomimport/internal/config"
)

func TestOptions(t *testing.T) {
	opts := Options(config.ImportConfig{
		DefaultCompany:  "Acme",
		DefaultCurrency: "EUR",
		DefaultUOM:      "Nos",
		RootItemGroup:   "All Item Groups",
		MaxConcurrent:   2,
		MaxWaitTime:     5 * time.Second,
		Timeout:         time.Minute,
	})

	assert.Equal(t, "Acme", opts.Company)
	assert.Equal(t, "EUR", opts.Currency)
	assert.Equal(t, "Nos", opts.DefaultUOM)
	assert.Equal(t, "All Item Groups", opts.RootItemGroup)
	assert.Equal(t, 2, opts.MaxConcurrent)
	assert.Equal(t, 5*time.Second, opts.MaxWait)
	assert.Equal(t, time.Minute, opts.Timeout)
}
