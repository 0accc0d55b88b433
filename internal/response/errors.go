package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrSessionCorrupt   ErrCode = "SESSION_CORRUPT"
	ErrSessionNotActive ErrCode = "SESSION_NOT_ACTIVE"

	// ─── Answers ───────────────────────────────────────────────────────
	ErrUnknownQuestion ErrCode = "UNKNOWN_QUESTION"
	ErrUnknownOption   ErrCode = "UNKNOWN_OPTION"
	ErrNoAnswerLetter  ErrCode = "NO_ANSWER_LETTER"

	// ─── Submission ────────────────────────────────────────────────────
	ErrSubmissionFailed     ErrCode = "SUBMISSION_FAILED"
	ErrSubmissionInProgress ErrCode = "SUBMISSION_IN_PROGRESS"
	ErrAlreadySubmitted     ErrCode = "ALREADY_SUBMITTED"
	ErrSubmissionLocked     ErrCode = "SUBMISSION_LOCKED"
	ErrResultNotFound       ErrCode = "RESULT_NOT_FOUND"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Sesi ujian tidak ditemukan."
	case ErrSessionCorrupt:
		return "Data sesi ujian rusak dan tidak dapat dimuat."
	case ErrSessionNotActive:
		return "Sesi ujian tidak sedang berjalan."

	// ─── Answers ───────────────────────────────────────────────────────
	case ErrUnknownQuestion:
		return "Soal tidak termasuk dalam sesi ujian ini."
	case ErrUnknownOption:
		return "Pilihan jawaban tidak termasuk dalam soal ini."
	case ErrNoAnswerLetter:
		return "Pilihan jawaban tidak memiliki huruf A-D."

	// ─── Submission ────────────────────────────────────────────────────
	case ErrSubmissionFailed:
		return "Gagal mengirim jawaban ujian."
	case ErrSubmissionInProgress:
		return "Pengiriman jawaban ujian sedang diproses."
	case ErrAlreadySubmitted:
		return "Ujian ini sudah dikirim."
	case ErrSubmissionLocked:
		return "Pengiriman otomatis gagal dan tidak dapat diulang."
	case ErrResultNotFound:
		return "Hasil ujian tidak ditemukan."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
