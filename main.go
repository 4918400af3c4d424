package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	json "github.com/KevinWang15/go-json5"

	"github.com/bob-anderson-ok/holofocus/hologram"
)

// !!!!! This MUST match the app name given in the run configuration !!!!!
const version = "1_0_0"

// !!!!! This MUST match the app name given in the run configuration !!!!!

func main() {

	programStart := time.Now()

	args := os.Args

	if len(args) != 2 {
		fmt.Println("\n\tWrong number of arguments.\n\tUsage: HoloFocus <parameter-file>")
		os.Exit(1)
	}

	path := args[1]

	// Read the Json5 (or Json) parameter file
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tAttempt to read input file %q failed: %w\n", path, err))
		os.Exit(2)
	}

	// Parse json(5) data into a generic container
	var jsonTable map[string]interface{}
	err = json.Unmarshal(data, &jsonTable)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tFormat error in file %q: %w\n", path, err))
		os.Exit(3)
	}

	var exp Experiment
	msg, ok := validateJsonFileAndFillExperiment(jsonTable, &exp)
	if !ok {
		fmt.Println(msg)
		os.Exit(4)
	}

	// Check for user wanting printout of complete jsonTable
	if exp.ShowInput {
		fmt.Printf("%s", "\nPrintout of  complete jsonTable contents...\n")
		fmt.Println(string(data))
	}

	// Foci may also come from a separate file; they are appended to any given inline
	if exp.PathToFociFile != "" {
		data, err := os.ReadFile(exp.PathToFociFile)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tAttempt to read file %q failed: %w\n", exp.PathToFociFile, err))
			os.Exit(5)
		}
		foci, err := parseFociFormat(data)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tError reading foci file %q: %w\n", exp.PathToFociFile, err))
			os.Exit(6)
		}
		if len(foci) < 1 {
			fmt.Println(fmt.Errorf("\n\tThe foci file %q is empty.", exp.PathToFociFile))
			os.Exit(6)
		}
		exp.Foci = append(exp.Foci, foci...)
	}

	fmt.Printf("\nVersion %s\n\n", version)

	arr, err := exp.makeArray()
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tArray construction failed: %w", err))
		os.Exit(7)
	}
	prob := exp.makeProblem()
	fmt.Printf("Array of %d×%d sources at %.1f mm pitch, wavelength %.3f mm, %d foci\n",
		exp.ArrayNx, exp.ArrayNy, exp.ArrayPitchMm, arr.Wavelength(), len(prob.Foci))

	opt, err := exp.makeOptimizer(os.Stdout)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tOptimizer selection failed: %w", err))
		os.Exit(8)
	}

	start := time.Now()
	res, err := opt.Optimize(arr, prob)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tOptimizer %s failed: %w", opt.Name(), err))
		os.Exit(9)
	}
	elapsed := time.Since(start)
	fmt.Printf("\n%s %s after %d iterations (objective %.6g) in %s\n\n",
		res.Algorithm, res.Status, res.Iterations, res.Objective, elapsed)

	rep, err := hologram.Evaluate(arr, prob)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tEvaluation of the foci failed: %w", err))
		os.Exit(10)
	}
	if _, err := rep.WriteTo(os.Stdout); err != nil {
		fmt.Println(fmt.Errorf("\n\tWriting the focal report failed: %w", err))
		os.Exit(10)
	}

	out := func(name string) string { return filepath.Join(exp.OutputFolder, name) }

	phases, err := phaseMatrix(arr, exp.ArrayNx, exp.ArrayNy)
	if err != nil {
		fmt.Println(fmt.Errorf("reshape of the phase vector failed: %w", err))
		os.Exit(11)
	}
	phaseImg, err := MatrixToGrayViewPercentile(flipRows(phases), 0, 100)
	if err == nil {
		err = SavePNG(out("phases8bit.png"), phaseImg)
	}
	if err != nil {
		fmt.Println(fmt.Errorf("writing of %q failed: %w", "phases8bit.png", err))
		os.Exit(12)
	}

	start = time.Now()
	builder, err := exp.makeGrid()
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tGrid specification failed: %w", err))
		os.Exit(13)
	}
	sf, err := builder.Generate(arr, exp.fieldType())
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tSampling of the %s plane failed: %w", exp.Plane, err))
		os.Exit(13)
	}
	elapsed = time.Since(start)
	fmt.Printf("\nSampling %d points of the %s plane took %s\n", sf.Len(), exp.Plane, elapsed)

	rows, err := sf.Rows()
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tThe sampled field is not a plane: %w", err))
		os.Exit(13)
	}
	display := flipRows(rows)

	imgForDisplay, err := MatrixToGrayViewPercentile(display, 0.0, 100)
	if err != nil {
		fmt.Println(fmt.Errorf("creation of the display image failed: %w", err))
		os.Exit(14)
	}
	err = SavePNG(out("field8bit.png"), imgForDisplay)
	if err != nil {
		fmt.Println(fmt.Errorf("writing of %q failed: %w", "field8bit.png", err))
		os.Exit(14)
	}

	// The data PNG maps the largest magnitude to full scale; the scale is printed
	// so the values can be recovered.
	top, _ := sf.Max()
	scale := 65535.0
	if top > 0 {
		scale /= top
	}
	fieldData, err := MatrixToGray16Data(display, scale)
	if err == nil {
		err = SavePNG(out("field16bit.png"), fieldData)
	}
	if err != nil {
		fmt.Println(fmt.Errorf("writing of %q failed: %w", "field16bit.png", err))
		os.Exit(15)
	}
	fmt.Printf("field16bit.png: value = pixel / %.6g\n", scale)
	if worst, err := checkDataPNG(out("field16bit.png"), scale, display); err != nil {
		fmt.Println(fmt.Errorf("reading back %q failed: %w", "field16bit.png", err))
	} else {
		fmt.Printf("field16bit.png: largest read-back error %.3g\n", worst)
	}

	first, second, fixed, _ := planeAxes(exp.Plane)
	var inPlane [][2]float64
	for _, f := range exp.Foci {
		if math.Abs(f[fixed]-[3]float64{sf.Origin.X, sf.Origin.Y, sf.Origin.Z}[fixed]) <= exp.ResolutionMm/2 {
			inPlane = append(inPlane, [2]float64{f[first], f[second]})
		}
	}

	heatMapFile := out("fieldHeatMap.png")
	title := fmt.Sprintf("%s: %s, %s plane", exp.Title, exp.fieldType(), exp.Plane)
	if err := makeHeatMapPlot(sf, inPlane, title, heatMapFile); err != nil {
		fmt.Println(fmt.Errorf("writing of %q failed: %w", heatMapFile, err))
		os.Exit(16)
	}
	barChartFile := out("focalAmplitudes.png")
	if err := makeFocalBarChart(rep, barChartFile); err != nil {
		fmt.Println(fmt.Errorf("writing of %q failed: %w", barChartFile, err))
		os.Exit(16)
	}

	profileFile := ""
	if len(inPlane) > 0 {
		profileFile, err = writeProfile(sf, rows, imgForDisplay, inPlane, out)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tThe focal profile could not be made: %w", err))
			profileFile = ""
		}
	}

	elapsed = time.Since(programStart)
	fmt.Printf("\nTotal program run time is %s\n", elapsed)

	if exp.WindowSizePixels > 0 { // Show the results
		size := float32(exp.WindowSizePixels)

		// We supply an ID (hopefully unique) because we may need to use the preferences API
		myApp := app.NewWithID("com.gmail.ok.anderson.bob.holofocus")
		w := myApp.NewWindow(exp.Title)
		w.SetPadded(false)
		w.CenterOnScreen()

		img := canvas.NewImageFromFile(heatMapFile)
		img.FillMode = canvas.ImageFillContain
		w.Resize(fyne.Size{Height: size, Width: size * 7 / 6})
		w.SetContent(container.NewStack(img))

		barImg := canvas.NewImageFromFile(barChartFile)
		barImg.FillMode = canvas.ImageFillContain
		barImg.SetMinSize(fyne.NewSize(800, 400))

		w2 := myApp.NewWindow("Focal amplitudes")
		w2.SetContent(container.NewCenter(barImg))
		w2.Resize(fyne.NewSize(850, 450))
		w2.Show()

		if profileFile != "" {
			profileImg := canvas.NewImageFromFile(profileFile)
			profileImg.FillMode = canvas.ImageFillContain
			profileImg.SetMinSize(fyne.NewSize(1200, 500))

			w3 := myApp.NewWindow("Profile through the foci")
			w3.SetContent(container.NewCenter(profileImg))
			w3.Resize(fyne.NewSize(950, 550))
			w3.Show()
		}

		w.ShowAndRun()
	}
}
