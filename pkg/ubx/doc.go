// Package ubx receives the binary frames of u-blox GNSS receivers.
package ubx

// Each frame is
//
//	0xB5 0x62 CLASS ID LEN_LO LEN_HI PAYLOAD... CK_A CK_B
//
// where CK_A/CK_B is an 8-bit Fletcher checksum over CLASS..PAYLOAD.
// Frames are delimited and verified here but their payload is never
// interpreted; the logger stores the raw frames for post-processing.
