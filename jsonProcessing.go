package main

import (
	"fmt"
	"strings"

	json "github.com/KevinWang15/go-json5"
)

// parseFociFormat reads a json5 array of [x, y, z] or [x, y, z, amplitude] entries.
func parseFociFormat(data []byte) ([][4]float64, error) {
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	foci := make([][4]float64, len(rows))
	for i, r := range rows {
		f, err := focusFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("focus %d: %w", i, err)
		}
		foci[i] = f
	}
	return foci, nil
}

func focusFromRow(r []float64) ([4]float64, error) {
	switch len(r) {
	case 3:
		return [4]float64{r[0], r[1], r[2], 1}, nil
	case 4:
		return [4]float64{r[0], r[1], r[2], r[3]}, nil
	}
	return [4]float64{}, fmt.Errorf("need 3 or 4 numbers, have %d", len(r))
}

func getLeafValue(jsonTable map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = jsonTable
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// The optional* helpers leave *dst untouched when key is missing.

func optionalFloat(jsonTable map[string]interface{}, key string, dst *float64) (string, bool) {
	v, ok := getLeafValue(jsonTable, key)
	if !ok {
		return "", true
	}
	f, ok := v.(float64)
	if !ok {
		return key + ": is not a float64", false
	}
	*dst = f
	return "", true
}

func optionalInt(jsonTable map[string]interface{}, key string, dst *int) (string, bool) {
	f := float64(*dst)
	if msg, ok := optionalFloat(jsonTable, key, &f); !ok {
		return msg, false
	}
	if f != float64(int(f)) {
		return key + ": is not an integer", false
	}
	*dst = int(f)
	return "", true
}

func optionalBool(jsonTable map[string]interface{}, key string, dst *bool) (string, bool) {
	v, ok := getLeafValue(jsonTable, key)
	if !ok {
		return "", true
	}
	b, ok := v.(bool)
	if !ok {
		return key + ": is not a bool", false
	}
	*dst = b
	return "", true
}

func optionalString(jsonTable map[string]interface{}, key string, dst *string) (string, bool) {
	v, ok := getLeafValue(jsonTable, key)
	if !ok {
		return "", true
	}
	s, ok := v.(string)
	if !ok {
		return key + ": is not a string", false
	}
	*dst = s
	return "", true
}

func validateJsonFileAndFillExperiment(jsonTable map[string]interface{}, exp *Experiment) (string, bool) {
	msg := "No problem found in json file" // Initialize msg to presumed success.

	*exp = defaultExperiment()

	for _, step := range []func() (string, bool){
		func() (string, bool) { return optionalBool(jsonTable, "show_input_bool", &exp.ShowInput) },
		func() (string, bool) { return optionalString(jsonTable, "title", &exp.Title) },
		func() (string, bool) { return optionalInt(jsonTable, "window_size_pixels", &exp.WindowSizePixels) },
		func() (string, bool) { return optionalString(jsonTable, "path_for_output_folder", &exp.OutputFolder) },
		func() (string, bool) { return optionalInt(jsonTable, "array_nx", &exp.ArrayNx) },
		func() (string, bool) { return optionalInt(jsonTable, "array_ny", &exp.ArrayNy) },
		func() (string, bool) { return optionalFloat(jsonTable, "array_pitch_mm", &exp.ArrayPitchMm) },
		func() (string, bool) { return optionalFloat(jsonTable, "array_z_mm", &exp.ArrayZMm) },
		func() (string, bool) { return optionalFloat(jsonTable, "wavelength_mm", &exp.WavelengthMm) },
		func() (string, bool) { return optionalFloat(jsonTable, "amp_max", &exp.AmpMax) },
		func() (string, bool) { return optionalFloat(jsonTable, "piston_radius_mm", &exp.PistonRadiusMm) },
		func() (string, bool) { return optionalString(jsonTable, "path_to_foci_file", &exp.PathToFociFile) },
		func() (string, bool) { return optionalString(jsonTable, "optimizer", &exp.Optimizer) },
		func() (string, bool) { return optionalInt(jsonTable, "iterations", &exp.Iterations) },
		func() (string, bool) { return optionalInt(jsonTable, "seed", &exp.Seed) },
		func() (string, bool) { return optionalBool(jsonTable, "include_amplitude_bool", &exp.IncludeAmplitude) },
		func() (string, bool) { return optionalBool(jsonTable, "complex_target_bool", &exp.ComplexTarget) },
		func() (string, bool) { return optionalBool(jsonTable, "randomize_order_bool", &exp.RandomizeOrder) },
		func() (string, bool) { return optionalInt(jsonTable, "phase_divisions", &exp.PhaseDivisions) },
		func() (string, bool) { return optionalInt(jsonTable, "amplitude_divisions", &exp.AmplitudeDivisions) },
		func() (string, bool) { return optionalString(jsonTable, "amplitude_mode", &exp.AmplitudeMode) },
		func() (string, bool) { return optionalString(jsonTable, "log_level", &exp.LogLevel) },
		func() (string, bool) { return optionalString(jsonTable, "plane", &exp.Plane) },
		func() (string, bool) { return optionalFloat(jsonTable, "plane_half_width_mm", &exp.PlaneHalfWidthMm) },
		func() (string, bool) { return optionalFloat(jsonTable, "resolution_mm", &exp.ResolutionMm) },
		func() (string, bool) { return optionalString(jsonTable, "field_type", &exp.FieldType) },
	} {
		if m, ok := step(); !ok {
			return m, false
		}
	}

	offset, ok := getLeafValue(jsonTable, "plane_offset_mm")
	if ok { // We allow this field to be missing - if missing, the plane goes through the first focus
		exp.PlaneOffsetMm, ok = offset.(float64)
		if !ok {
			msg = "plane_offset_mm: is not a float64"
			return msg, false
		}
		exp.PlaneOffsetGiven = true
	}

	foci, ok := getLeafValue(jsonTable, "foci")
	if !ok {
		if exp.PathToFociFile == "" {
			msg = "foci: not found (and no path_to_foci_file given)"
			return msg, false
		}
	} else {
		list, ok := foci.([]interface{})
		if !ok {
			msg = "foci: is not an array"
			return msg, false
		}
		for i, entry := range list {
			values, ok := entry.([]interface{})
			if !ok {
				return fmt.Sprintf("foci[%d]: is not an array", i), false
			}
			row := make([]float64, len(values))
			for k, v := range values {
				row[k], ok = v.(float64)
				if !ok {
					return fmt.Sprintf("foci[%d][%d]: is not a float64", i, k), false
				}
			}
			f, err := focusFromRow(row)
			if err != nil {
				return fmt.Sprintf("foci[%d]: %v", i, err), false
			}
			exp.Foci = append(exp.Foci, f)
		}
		if len(exp.Foci) == 0 {
			msg = "foci: is empty"
			return msg, false
		}
	}

	switch {
	case exp.ArrayNx < 1 || exp.ArrayNy < 1:
		msg = "array_nx and array_ny: must be at least 1"
		return msg, false
	case exp.ArrayPitchMm <= 0:
		msg = "array_pitch_mm: must be positive"
		return msg, false
	case exp.WavelengthMm <= 0:
		msg = "wavelength_mm: must be positive"
		return msg, false
	case exp.AmpMax <= 0:
		msg = "amp_max: must be positive"
		return msg, false
	case exp.PlaneHalfWidthMm <= 0:
		msg = "plane_half_width_mm: must be positive"
		return msg, false
	case exp.ResolutionMm <= 0:
		msg = "resolution_mm: must be positive"
		return msg, false
	}

	exp.Plane = strings.ToLower(exp.Plane)
	if _, _, _, ok := planeAxes(exp.Plane); !ok {
		msg = fmt.Sprintf("plane: %q is not one of xy, xz, yz", exp.Plane)
		return msg, false
	}
	if _, ok := fieldTypes[strings.ToLower(exp.FieldType)]; !ok {
		msg = fmt.Sprintf("field_type: %q is not one of pressure, power, real_pressure", exp.FieldType)
		return msg, false
	}
	if _, ok := amplitudeModes[strings.ToLower(exp.AmplitudeMode)]; !ok {
		msg = fmt.Sprintf("amplitude_mode: %q is not one of phase_only, normalize, clamp", exp.AmplitudeMode)
		return msg, false
	}
	if _, ok := logLevels[strings.ToLower(exp.LogLevel)]; !ok {
		msg = fmt.Sprintf("log_level: %q is not one of none, last, trace", exp.LogLevel)
		return msg, false
	}

	return msg, true
}
