// Package naming renders recording output paths from a template.
//
// Templates contain colon-prefixed tokens (:streamer, :title, :date, :time,
// :day, :month, :year, :shortYear, :period) matched case-insensitively.
// Unknown tokens are left untouched. The session start is converted into the
// configured time zone before any date field is derived, and the streamer and
// title are sanitized independently before a final whole-path pass removes
// characters the target filesystem rejects. Paths are never truncated.
package naming
