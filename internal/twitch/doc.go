// Package twitch talks to the public Twitch endpoints twitchrec needs: the GQL
// API for live status, titles, and playback tokens, and the usher service for
// the HLS master playlist from which a variant URL is chosen by quality
// preference.
//
// The push feed lives in the pubsub subpackage.
package twitch
