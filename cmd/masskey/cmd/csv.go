package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// readSequenceCSV calls fn with the first two fields of every row of a
// "Sequence,value" CSV after the header.
func readSequenceCSV(path, valueName string, fn func(sequence, value string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Scan() // header

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: expected 2 fields (Sequence,%s), got %d", lineNum, valueName, len(parts))
		}
		if err := fn(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}
	return nil
}

func loadMassOffsetCSV(path string) (map[string]float64, error) {
	result := make(map[string]float64)
	err := readSequenceCSV(path, "massOffset", func(seq, value string) error {
		offset, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid mass offset value '%s': %w", value, err)
		}
		result[seq] = offset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func loadCompoundClassCSV(path string) (map[string]string, error) {
	result := make(map[string]string)
	err := readSequenceCSV(path, "CompoundClass", func(seq, value string) error {
		result[seq] = value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
