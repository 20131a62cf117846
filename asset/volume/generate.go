package volume

// Generate a sphere of constant density centered in a cube of the given
// resolution. The radius is measured in voxels.
func Sphere(res int, radius, density float32) *Volume {
	vol := &Volume{
		Resolution: res,
		Data:       make([]float32, res*res*res),
	}

	center := float32(res) * 0.5
	r2 := radius * radius
	for z := 0; z < res; z++ {
		dz := float32(z) + 0.5 - center
		for y := 0; y < res; y++ {
			dy := float32(y) + 0.5 - center
			for x := 0; x < res; x++ {
				dx := float32(x) + 0.5 - center
				if dx*dx+dy*dy+dz*dz <= r2 {
					vol.Data[(z*res+y)*res+x] = density
				}
			}
		}
	}
	return vol
}

// Collect basic statistics for a volume.
func (v *Volume) Stats() (minDensity, maxDensity, mean float32, occupied int) {
	if len(v.Data) == 0 {
		return 0, 0, 0, 0
	}
	minDensity, maxDensity = v.Data[0], v.Data[0]
	var sum float64
	for _, d := range v.Data {
		minDensity = min(minDensity, d)
		maxDensity = max(maxDensity, d)
		sum += float64(d)
		if d > 0 {
			occupied++
		}
	}
	return minDensity, maxDensity, float32(sum / float64(len(v.Data))), occupied
}
