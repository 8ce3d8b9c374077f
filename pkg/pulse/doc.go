// Package pulse defines the platform-neutral channel analytics contracts shared by
// feature modules and platform drivers.
//
// Values in this package are what observers see. Drivers translate platform wire
// objects into them; modules accumulate and cache them through livecache.
package pulse
