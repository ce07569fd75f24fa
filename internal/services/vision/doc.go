// Package vision is the HTTP client for the still-image moderation service.
// Client implements detect.VideoDetector: each call uploads one frame as a
// multipart "image" field and decodes a block verdict plus object boxes.
package vision
