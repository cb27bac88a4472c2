package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeightedPortfolio(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantSymbols []string
		wantWeights []float64
		wantWindow  string
		wantErr     bool
	}{
		{
			name:        "valid 3 stocks",
			input:       "/simport NVDA 0.4 AAPL 0.3 MSFT 0.3",
			wantSymbols: []string{"NVDA", "AAPL", "MSFT"},
			wantWeights: []float64{0.4, 0.3, 0.3},
		},
		{
			name:        "with window and bot name",
			input:       "/simport@mc_bot nvda 0.6 aapl 0.4 6m",
			wantSymbols: []string{"NVDA", "AAPL"},
			wantWeights: []float64{0.6, 0.4},
			wantWindow:  "6m",
		},
		{
			name:        "percentages",
			input:       "NVDA 60% AAPL 40%",
			wantSymbols: []string{"NVDA", "AAPL"},
			wantWeights: []float64{0.6, 0.4},
		},
		{
			name:        "weights not summing to one are left to the aggregator",
			input:       "/simport NVDA 0.5 AAPL 0.3",
			wantSymbols: []string{"NVDA", "AAPL"},
			wantWeights: []float64{0.5, 0.3},
		},
		{name: "single pair", input: "/simport NVDA 1.0", wantErr: true},
		{name: "odd arguments", input: "/simport NVDA 0.5 AAPL", wantErr: true},
		{name: "duplicate symbol", input: "/simport NVDA 0.5 nvda 0.5", wantErr: true},
		{name: "bad weight", input: "/simport NVDA half AAPL 0.5", wantErr: true},
		{name: "bad symbol", input: "/simport NV$DA 0.5 AAPL 0.5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			symbols, weights, window, err := ParseWeightedPortfolio(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSymbols, symbols)
			assert.InDeltaSlice(t, tt.wantWeights, weights, 1e-12)
			assert.Equal(t, tt.wantWindow, window)
		})
	}
}

func TestParseSimulationArgs(t *testing.T) {
	tests := []struct {
		input   string
		want    SimulationArgs
		wantErr bool
	}{
		{input: "/sim nvda", want: SimulationArgs{Symbol: "NVDA"}},
		{input: "/sim NVDA 500", want: SimulationArgs{Symbol: "NVDA", Simulations: 500}},
		{input: "/sim NVDA 500 30 2y", want: SimulationArgs{Symbol: "NVDA", Simulations: 500, Days: 30, Window: "2y"}},
		{input: "/sim@mc_bot BRK.B 2023-01-01:2024-01-01", want: SimulationArgs{Symbol: "BRK.B", Window: "2023-01-01:2024-01-01"}},
		{input: "^GSPC 10 5", want: SimulationArgs{Symbol: "^GSPC", Simulations: 10, Days: 5}},
		{input: "/sim", wantErr: true},
		{input: "/sim NVDA 0", wantErr: true},
		{input: "/sim NVDA ten", wantErr: true},
		{input: "/sim NVDA 1 2 3", wantErr: true},
		{input: "/sim NVDA 1 2 3 1y", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSimulationArgs(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripCommand(t *testing.T) {
	assert.Equal(t, "NVDA", stripCommand("/sim NVDA", "/sim"))
	assert.Equal(t, "NVDA", stripCommand("/sim@bot NVDA", "/sim"))
	assert.Equal(t, "", stripCommand("/sim@bot", "/sim"))
	assert.Equal(t, "/simport NVDA 1", stripCommand("/simport NVDA 1", "/sim"))
}
