package gps

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// checksum XORs every byte of a sentence body (no '$', no '*HH').
func checksum(body string) byte {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return sum
}

// calculateChecksum calculates the NMEA checksum for a sentence
func calculateChecksum(sentence string) string {
	return fmt.Sprintf("%02X", checksum(strings.TrimPrefix(sentence, "$")))
}

// formatNMEA formats a complete NMEA sentence with checksum
func formatNMEA(sentence string) string {
	checksum := calculateChecksum(sentence)
	return fmt.Sprintf("%s*%s\r\n", sentence, checksum)
}

// FormatGGA generates a GGA (Global Positioning System Fix Data) sentence.
// A zero Quality produces the receiver's no-fix form with empty position fields.
func FormatGGA(fix FixRecord, timestamp time.Time) string {
	timeStr := timestamp.UTC().Format("150405") // HHMMSS

	if fix.Quality == 0 {
		return formatNMEA(fmt.Sprintf("$GPGGA,%s,,,,,0,00,,,,,,,,,", timeStr))
	}

	// Convert coordinates to NMEA format (DDMM.MMMM)
	latDeg := int(math.Abs(fix.Latitude))
	latMin := (math.Abs(fix.Latitude) - float64(latDeg)) * 60
	latHem := "N"
	if fix.Latitude < 0 {
		latHem = "S"
	}

	lonDeg := int(math.Abs(fix.Longitude))
	lonMin := (math.Abs(fix.Longitude) - float64(lonDeg)) * 60
	lonHem := "E"
	if fix.Longitude < 0 {
		lonHem = "W"
	}

	sentence := fmt.Sprintf("$GPGGA,%s,%02d%07.4f,%s,%03d%07.4f,%s,%d,%02d,%.1f,%.1f,M,0.0,M,,",
		timeStr,
		latDeg, latMin, latHem,
		lonDeg, lonMin, lonHem,
		fix.Quality, fix.Satellites, fix.HDOP,
		fix.Altitude)

	return formatNMEA(sentence)
}

// FormatGSV generates GSV (Satellites in view) sentences for one talker.
// Satellites without a signal get an empty SNR field.
func FormatGSV(talker string, satellites []SatelliteRecord) []string {
	var sentences []string

	totalSats := len(satellites)
	totalSentences := (totalSats + 3) / 4 // Round up to nearest 4
	if totalSentences == 0 {
		totalSentences = 1
	}

	for sentenceNum := 1; sentenceNum <= totalSentences; sentenceNum++ {
		startIdx := (sentenceNum - 1) * 4
		endIdx := startIdx + 4
		if endIdx > totalSats {
			endIdx = totalSats
		}

		sentence := fmt.Sprintf("$%sGSV,%d,%d,%02d",
			talker, totalSentences, sentenceNum, totalSats)

		// Add satellite data (up to 4 satellites per sentence)
		for i := startIdx; i < endIdx; i++ {
			sat := satellites[i]
			snr := ""
			if sat.Signal != nil {
				snr = fmt.Sprintf("%02d", int(math.Round(*sat.Signal)))
			}
			sentence += fmt.Sprintf(",%02d,%02d,%03d,%s",
				sat.ID, int(math.Round(sat.Elevation)), int(math.Round(sat.Azimuth))%360, snr)
		}

		// Pad with empty fields if less than 4 satellites in this sentence
		fieldsToAdd := 4 - (endIdx - startIdx)
		for i := 0; i < fieldsToAdd; i++ {
			sentence += ",,,,"
		}

		sentences = append(sentences, formatNMEA(sentence))
	}

	return sentences
}
