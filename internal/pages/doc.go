// Package pages discovers chapter page images and prepares them for OCR and
// for video frames.
//
// Decoding goes through imaging with the WebP decoder registered, so PNG,
// JPEG and WebP pages are all accepted. EnhanceForOCR produces the grayscale,
// contrast-boosted PNG bytes sent to OCR providers (and fingerprinted for the
// cache); PrepareFrame letterboxes a page onto the target video canvas;
// TitleCard renders the chapter opening frame.
package pages
