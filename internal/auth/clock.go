package auth

import "time"

var timeNow = time.Now
