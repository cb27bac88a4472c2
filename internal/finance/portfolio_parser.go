package finance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reSymbol = regexp.MustCompile(`^[A-Za-z0-9\.^_=+-]+$`)
	reWindow = regexp.MustCompile(`^(\d+[dwmy]|\d{4}-\d{2}-\d{2}:\d{4}-\d{2}-\d{2})$`)
)

// SimulationArgs are the arguments of a single-asset simulation command.
type SimulationArgs struct {
	Symbol      string
	Simulations int
	Days        int
	Window      string
}

// ParseSimulationArgs parses "SYMBOL [sims] [days] [window]". Zero counts mean
// "use the configured default".
func ParseSimulationArgs(input string) (SimulationArgs, error) {
	input = stripCommand(input, "/sim")
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return SimulationArgs{}, fmt.Errorf("missing symbol, e.g. /sim NVDA 150 100 1y")
	}
	if len(parts) > 4 {
		return SimulationArgs{}, fmt.Errorf("too many arguments: %d", len(parts))
	}
	if !reSymbol.MatchString(parts[0]) {
		return SimulationArgs{}, fmt.Errorf("invalid symbol %q", parts[0])
	}
	args := SimulationArgs{Symbol: strings.ToUpper(parts[0])}

	rest := parts[1:]
	if n := len(rest); n > 0 && reWindow.MatchString(strings.ToLower(rest[n-1])) {
		args.Window = strings.ToLower(rest[n-1])
		rest = rest[:n-1]
	}
	counts := []*int{&args.Simulations, &args.Days}
	if len(rest) > len(counts) {
		return SimulationArgs{}, fmt.Errorf("unexpected argument %q", rest[len(counts)])
	}
	for i, s := range rest {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return SimulationArgs{}, fmt.Errorf("invalid count %q: must be a positive integer", s)
		}
		*counts[i] = v
	}
	return args, nil
}

// ParseWeightedPortfolio parses a weighted portfolio command string
// Format: /simport NVDA 0.4 AAPL 0.3 MSFT 0.3 [window]
// Returns: symbols, weights, window, error. Weight sums are left to the
// aggregator so that bad allocations surface as montecarlo.ErrInvalidWeights.
func ParseWeightedPortfolio(input string) ([]string, []float64, string, error) {
	input = stripCommand(input, "/simport")

	parts := strings.Fields(input)
	window := ""
	if n := len(parts); n > 0 && reWindow.MatchString(strings.ToLower(parts[n-1])) {
		window = strings.ToLower(parts[n-1])
		parts = parts[:n-1]
	}
	if len(parts) < 4 {
		return nil, nil, "", fmt.Errorf("insufficient arguments: need at least two symbol weight pairs")
	}
	if len(parts)%2 != 0 {
		return nil, nil, "", fmt.Errorf("invalid format: each symbol must have a weight")
	}

	var symbols []string
	var weights []float64
	seen := make(map[string]bool)
	for i := 0; i < len(parts); i += 2 {
		symbol := strings.ToUpper(strings.TrimSpace(parts[i]))
		weightStr := strings.TrimSpace(parts[i+1])

		if !reSymbol.MatchString(symbol) {
			return nil, nil, "", fmt.Errorf("invalid symbol %q at position %d", symbol, i/2+1)
		}
		if seen[symbol] {
			return nil, nil, "", fmt.Errorf("duplicate symbol: %s", symbol)
		}
		seen[symbol] = true

		weight, err := parseWeight(weightStr)
		if err != nil {
			return nil, nil, "", fmt.Errorf("invalid weight '%s' for symbol %s: %w", weightStr, symbol, err)
		}
		symbols = append(symbols, symbol)
		weights = append(weights, weight)
	}
	return symbols, weights, window, nil
}

// parseWeight accepts fractions (0.25) and percentages (25%).
func parseWeight(s string) (float64, error) {
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return 0, err
		}
		return v / 100, nil
	}
	return strconv.ParseFloat(s, 64)
}

// stripCommand removes a leading bot command, including an optional @botname.
func stripCommand(input, cmd string) string {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, cmd) {
		return input
	}
	rest := input[len(cmd):]
	if strings.HasPrefix(rest, "@") {
		if i := strings.IndexAny(rest, " \t"); i >= 0 {
			rest = rest[i:]
		} else {
			rest = ""
		}
	} else if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		// a longer command such as /simport when stripping /sim
		return input
	}
	return strings.TrimSpace(rest)
}
