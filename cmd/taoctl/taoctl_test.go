package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmanilo/paralimni/internal/domain"
	"github.com/vmanilo/paralimni/internal/platform/config"
	"github.com/vmanilo/paralimni/internal/platform/version"
)

const (
	alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	bob   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
)

func TestRootCmd_Version(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version.Get().String()+"\n", out.String())
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"dividend", "sentiment"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
		assert.NotNil(t, sub.Flags().Lookup("netuid"))
		assert.NotNil(t, sub.Flags().Lookup("hotkey"))
	}
}

func TestDividendCmd_RejectsPositionalArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"dividend", "extra"})

	assert.Error(t, cmd.Execute())
}

func TestDividendOptions_Query(t *testing.T) {
	cfg := &config.Config{DefaultNetUID: 18, DefaultHotkey: alice}

	tests := []struct {
		name    string
		opts    dividendOptions
		want    domain.DividendQuery
		wantErr bool
	}{
		{name: "defaults", opts: dividendOptions{netuid: -1}, want: domain.DividendQuery{SubnetID: 18, Hotkey: alice}},
		{name: "explicit", opts: dividendOptions{netuid: 3, hotkey: bob}, want: domain.DividendQuery{SubnetID: 3, Hotkey: bob}},
		{name: "zero netuid", opts: dividendOptions{netuid: 0}, want: domain.DividendQuery{SubnetID: 0, Hotkey: alice}},
		{name: "netuid too large", opts: dividendOptions{netuid: 70000}, wantErr: true},
		{name: "bad hotkey", opts: dividendOptions{netuid: -1, hotkey: "nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.query(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSentimentResult_String(t *testing.T) {
	assert.Equal(t, "netuid 4: no sentiment (nothing scored)", (&sentimentResult{SubnetID: 4}).String())
	assert.Equal(t, "netuid 4: mean sentiment 0.00, neutral, no stake action",
		(&sentimentResult{SubnetID: 4, Scored: true}).String())

	res := &sentimentResult{
		SubnetID:  4,
		Mean:      -12.5,
		Scored:    true,
		Action:    &domain.StakeAction{Direction: domain.StakeRemove, AmountRao: 125, Hotkey: alice},
		Submitted: true,
	}
	assert.Equal(t, "netuid 4: mean sentiment -12.50, would unstake 125 rao on "+alice+" (submitted)", res.String())
}

func TestPrintResult_JSON(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, printResult(cmd, true, map[string]int{"dividend": 7}, "ignored"))
	assert.JSONEq(t, `{"dividend":7}`, out.String())
}

func TestRootCmd_RegistersMaintenanceCommands(t *testing.T) {
	cmd := newRootCmd()

	purge, _, err := cmd.Find([]string{"cache-purge"})
	require.NoError(t, err)
	assert.NotNil(t, purge.Flags().Lookup("netuid"))
	assert.NotNil(t, purge.Flags().Lookup("dry-run"))

	migrate, _, err := cmd.Find([]string{"migrate"})
	require.NoError(t, err)
	assert.Equal(t, "migrate", migrate.Name())
}

func TestPurgeOptions_Subnet(t *testing.T) {
	all, err := (&purgeOptions{netuid: -1}).subnet()
	require.NoError(t, err)
	assert.Nil(t, all)

	one, err := (&purgeOptions{netuid: 18}).subnet()
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, uint16(18), *one)

	_, err = (&purgeOptions{netuid: 70000}).subnet()
	assert.Error(t, err)
}
