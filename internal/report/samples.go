package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"shakeout/internal/stats"
)

// WriteSamplesCSV exports raw samples in a JMeter-like layout.
// Schema: timeStamp,elapsed,label,responseCode,responseMessage,threadName,success,failureMessage,attempts
func WriteSamplesCSV(path string, samples []stats.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := writeSamples(w, samples); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeSamples(w *csv.Writer, samples []stats.Sample) error {
	header := []string{
		"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
		"threadName", "success", "failureMessage", "attempts",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, s := range samples {
		code, msg := "200", "OK"
		failure := ""
		if !s.Succeeded {
			code, msg = "500", "Failed"
			failure = string(s.ErrorKind)
		}
		record := []string{
			strconv.FormatInt(s.Timestamp.UnixMilli(), 10),
			strconv.FormatInt(s.Duration.Milliseconds(), 10),
			s.Operation,
			code,
			msg,
			"User-" + strconv.Itoa(s.UserID),
			strconv.FormatBool(s.Succeeded),
			failure,
			strconv.Itoa(s.Attempts),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
