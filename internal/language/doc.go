// Package language normalizes narration language codes and maps them to the
// forms each collaborator needs: ISO 639-1 for prompts and speech, tesseract
// traineddata names for OCR, display names for reports, and the localized
// chapter word used on title cards.
package language
