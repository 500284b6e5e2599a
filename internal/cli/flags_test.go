package cli

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
)

func TestParseRunFlags_ToOptions(t *testing.T) {
	t.Run("defaults pass through", func(t *testing.T) {
		flags, err := ParseRunFlags(nil, io.Discard)
		require.NoError(t, err)

		defaults := reconcile.DefaultOptions()
		defaults.Currency = "EUR"
		opts, err := flags.ToOptions(defaults)

		require.NoError(t, err)
		assert.Equal(t, defaults, opts)
	})

	t.Run("flags override", func(t *testing.T) {
		flags, err := ParseRunFlags([]string{
			"-dry-run", "-sources", "bank_ledger, invoice", "-from", "2025-03-01", "-to", "2025-03-31",
			"-currency", "usd", "-threshold", "80", "-no-preserve", "-mark-needs-review", "-sample", "0",
		}, io.Discard)
		require.NoError(t, err)

		opts, err := flags.ToOptions(reconcile.DefaultOptions())

		require.NoError(t, err)
		assert.True(t, opts.DryRun)
		assert.Equal(t, []candidate.Source{candidate.SourceBankLedger, candidate.SourceInvoice}, opts.Sources)
		assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), opts.From)
		assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), opts.To)
		assert.Equal(t, "usd", opts.Currency)
		assert.Equal(t, 80.0, opts.Threshold)
		assert.False(t, opts.PreserveReconciliation)
		assert.True(t, opts.MarkNeedsReview)
		assert.Equal(t, 0, opts.SampleSize)
	})

	t.Run("invalid values", func(t *testing.T) {
		tests := map[string][]string{
			"unknown source": {"-sources", "ledger"},
			"bad date":       {"-from", "1/3/2025"},
			"inverted range": {"-from", "2025-03-31", "-to", "2025-03-01"},
			"threshold":      {"-threshold", "101"},
		}
		for name, args := range tests {
			t.Run(name, func(t *testing.T) {
				flags, err := ParseRunFlags(args, io.Discard)
				require.NoError(t, err)

				_, err = flags.ToOptions(reconcile.DefaultOptions())
				assert.Error(t, err)
			})
		}
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := ParseRunFlags([]string{"-bogus"}, io.Discard)
		assert.Error(t, err)
	})
}

func TestParseRunsFlags(t *testing.T) {
	flags, err := ParseRunsFlags([]string{"-id", "abc", "-matches", "-limit", "5"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "abc", flags.ID)
	assert.True(t, flags.Matches)
	assert.Equal(t, 5, flags.Limit)

	_, err = ParseRunsFlags([]string{"-matches"}, io.Discard)
	assert.Error(t, err)
}

func TestRunDefaults(t *testing.T) {
	preserve := false
	opts, err := RunDefaults(config.RunConfig{
		Sources:                []string{"bank_ledger", "gateway_payout"},
		LookbackDays:           14,
		Currency:               "GBP",
		PreserveReconciliation: &preserve,
		MarkNeedsReview:        true,
		SampleSize:             10,
		PageSize:               50,
	})

	require.NoError(t, err)
	assert.Equal(t, []candidate.Source{candidate.SourceBankLedger, candidate.SourceGatewayPayout}, opts.Sources)
	assert.Equal(t, 14, opts.LookbackDays)
	assert.Equal(t, "GBP", opts.Currency)
	assert.False(t, opts.PreserveReconciliation)
	assert.True(t, opts.MarkNeedsReview)
	assert.Equal(t, 10, opts.SampleSize)
	assert.Equal(t, 50, opts.PageSize)

	t.Run("empty config keeps defaults", func(t *testing.T) {
		opts, err := RunDefaults(config.RunConfig{})
		require.NoError(t, err)
		assert.Equal(t, reconcile.DefaultOptions(), opts)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := RunDefaults(config.RunConfig{Sources: []string{"erp"}})
		assert.Error(t, err)
	})
}
