package ratelimiter

const burst = 1
