package errors

import "fmt"

// ClassifyHTTPStatus maps a non-2xx response onto the error taxonomy:
//   - 401/403 are auth failures, irrecoverable
//   - 404 is not-found, irrecoverable
//   - 408/429 may be retried
//   - other 4xx are validation rejections, irrecoverable
//   - 5xx and anything unexpected is transport-level, recoverable
func ClassifyHTTPStatus(statusCode int, body string, operation string) *ClassifiedError {
	kind, category := httpTaxonomy(statusCode)
	return &ClassifiedError{
		Kind:       kind,
		Category:   category,
		StatusCode: statusCode,
		Body:       body,
		Underlying: fmt.Errorf("%s: status %d", operation, statusCode),
	}
}

func httpTaxonomy(statusCode int) (Kind, Category) {
	switch {
	case statusCode == 401 || statusCode == 403:
		return Auth, Irrecoverable
	case statusCode == 404:
		return NotFound, Irrecoverable
	case statusCode == 408 || statusCode == 429:
		return Transport, Recoverable
	case statusCode >= 400 && statusCode < 500:
		return Validation, Irrecoverable
	case statusCode >= 500 && statusCode < 600:
		return Transport, Recoverable
	default:
		// Unexpected status codes - be conservative and retry.
		return Transport, Recoverable
	}
}
